package web

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/hpungsan/acta/internal/attach"
	"github.com/hpungsan/acta/internal/config"
	"github.com/hpungsan/acta/internal/errors"
	"github.com/hpungsan/acta/internal/meeting"
	"github.com/hpungsan/acta/internal/ops"
	"github.com/hpungsan/acta/internal/session"
	"github.com/hpungsan/acta/internal/store"
)

// maxUploadBytes caps one multipart upload request.
const maxUploadBytes = 64 << 20

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	store    *store.Store
	cfg      *config.Config
	settings *config.Settings
	gens     *generations
	renderer *Renderer
	logger   *slog.Logger
}

// HandleList handles GET /meetings, the dashboard with search.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	result, err := ops.List(r.Context(), h.store, ops.ListInput{
		Query:  query,
		Tag:    r.URL.Query().Get("tag"),
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	data := ListPageData{
		PageData:   h.renderer.page("Meetings", "meetings"),
		Query:      query,
		Cards:      result.Items,
		Pagination: result.Pagination,
	}

	// Search box and live refresh swap only the results.
	if r.Header.Get("HX-Target") == "results" {
		h.renderer.renderBlock(w, http.StatusOK, "list", "results", data)
		return
	}
	h.renderer.renderPage(w, r, "list", data)
}

// HandleCreate handles POST /meetings. The new meeting's id becomes its
// location.
func (h *Handlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctrl := session.New(h.store, nil, session.WithLogger(h.logger))
	defer ctrl.Close()

	id, err := ctrl.Create(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	location := fmt.Sprintf("/meetings/%d", id)
	if wantsJSON(r) {
		w.Header().Set("Location", location)
		renderJSON(w, http.StatusCreated, map[string]any{"id": id})
		return
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// HandleDetail handles GET /meetings/{id}.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	out, err := ops.Fetch(r.Context(), h.store, ops.FetchInput{ID: id, IncludeImages: true})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	generating, failure := h.gens.status(id)

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{
			"meeting":    out,
			"generating": generating,
			"notice":     failure,
		})
		return
	}

	view := r.URL.Query().Get("view")
	if view != string(session.ViewNotes) && view != string(session.ViewMinutes) {
		view = string(session.ViewNotes)
		if out.Processed {
			view = string(session.ViewMinutes)
		}
	}

	key, _ := h.settings.APIKey()
	display := meeting.DisplayTitle(out.Title)

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData:     h.renderer.page(display, "meetings"),
		Meeting:      out,
		DisplayTitle: display,
		MinutesHTML:  renderMarkdown(out.MinutesText()),
		Images:       out.Images,
		View:         view,
		Generating:   generating,
		Notice:       failure,
		HasKey:       key != "",
	})
}

// HandleUpdate handles POST /meetings/{id}. Only fields present in the form
// are written.
func (h *Handlers) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	input := ops.UpdateInput{ID: id}
	if r.PostForm.Has("title") {
		input.Title = formString(r, "title")
	}
	if r.PostForm.Has("notes") {
		input.Notes = formString(r, "notes")
	}
	if r.PostForm.Has("minutes") {
		input.Minutes = formString(r, "minutes")
	}

	result, err := ops.Update(r.Context(), h.store, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}
	http.Redirect(w, r, meetingURL(id, r.FormValue("view")), http.StatusSeeOther)
}

// HandleTagAdd handles POST /meetings/{id}/tags.
func (h *Handlers) HandleTagAdd(w http.ResponseWriter, r *http.Request) {
	h.changeTag(w, r, ops.TagAdd)
}

// HandleTagRemove handles POST /meetings/{id}/tags/remove.
func (h *Handlers) HandleTagRemove(w http.ResponseWriter, r *http.Request) {
	h.changeTag(w, r, ops.TagRemove)
}

func (h *Handlers) changeTag(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, st *store.Store, in ops.TagInput) (*ops.TagOutput, error)) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	result, err := op(r.Context(), h.store, ops.TagInput{ID: id, Tag: r.FormValue("tag")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}
	http.Redirect(w, r, meetingURL(id, r.FormValue("view")), http.StatusSeeOther)
}

// HandleDelete handles DELETE /meetings/{id} and POST /meetings/{id}/delete.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	result, err := ops.Delete(r.Context(), h.store, ops.DeleteInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.gens.dismiss(id)

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/meetings")
		w.WriteHeader(http.StatusOK)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}
	http.Redirect(w, r, "/meetings", http.StatusSeeOther)
}

// HandleGenerate handles POST /meetings/{id}/generate. Generation runs in
// the background; the detail page shows progress and the live stream
// reports completion.
func (h *Handlers) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	// Surface a missing key now rather than as a failed task.
	if key, err := h.settings.APIKey(); err != nil {
		h.renderer.renderError(w, r, errors.NewInternal(err))
		return
	} else if key == "" {
		h.renderer.renderError(w, r, errors.NewConfiguration("Gemini API key is not set. Add it on the settings page."))
		return
	}

	taskID, err := h.gens.start(r.Context(), id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusAccepted, map[string]any{"id": id, "task_id": taskID})
		return
	}
	http.Redirect(w, r, meetingURL(id, ""), http.StatusSeeOther)
}

// HandleDismiss handles POST /meetings/{id}/notice/dismiss.
func (h *Handlers) HandleDismiss(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	h.gens.dismiss(id)
	http.Redirect(w, r, meetingURL(id, ""), http.StatusSeeOther)
}

// HandleImageUpload handles POST /meetings/{id}/images (multipart "files").
// Non-image files are skipped and reported.
func (h *Handlers) HandleImageUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid upload: "+err.Error()))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("no files uploaded"))
		return
	}

	items := make([]attach.Item, 0, len(files))
	for _, fh := range files {
		if fh.Size > attach.MaxFileBytes {
			h.renderer.renderError(w, r, errors.NewInvalidRequest(fmt.Sprintf("%s exceeds %d MB", fh.Filename, attach.MaxFileBytes>>20)))
			return
		}
		f, err := fh.Open()
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInternal(err))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInternal(err))
			return
		}
		items = append(items, attach.Item{
			Data:     data,
			MimeType: fh.Header.Get("Content-Type"),
			Name:     fh.Filename,
		})
	}

	result, err := ops.ImageAdd(r.Context(), h.store, ops.ImageAddInput{MeetingID: id, Items: items})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	for _, s := range result.Skipped {
		h.logger.Info("upload skipped", "meeting_id", id, "name", s.Name, "reason", s.Reason)
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}
	http.Redirect(w, r, meetingURL(id, r.FormValue("view")), http.StatusSeeOther)
}

// HandleImage handles GET /images/{id}, serving the stored bytes.
func (h *Handlers) HandleImage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	img, err := h.store.GetImage(r.Context(), id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", img.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Blob)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", ops.SanitizeForFilename(attach.DisplayName(img.Name, img.MimeType))))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Blob)
}

// HandleImageDelete handles DELETE /images/{id} and POST /images/{id}/delete.
// Removing a missing image is not an error.
func (h *Handlers) HandleImageDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var meetingID int64
	if img, err := h.store.GetImage(r.Context(), id); err == nil {
		meetingID = img.MeetingID
	}

	result, err := ops.ImageRemove(r.Context(), h.store, ops.ImageRemoveInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) || meetingID == 0 {
		renderJSON(w, http.StatusOK, result)
		return
	}
	http.Redirect(w, r, meetingURL(meetingID, r.FormValue("view")), http.StatusSeeOther)
}

// HandleSettings handles GET /settings.
func (h *Handlers) HandleSettings(w http.ResponseWriter, r *http.Request) {
	key, err := h.settings.APIKey()
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInternal(err))
		return
	}
	h.renderer.renderPage(w, r, "settings", SettingsPageData{
		PageData: h.renderer.page("Settings", "settings"),
		HasKey:   key != "",
		Masked:   config.MaskKey(key),
		FromEnv:  envKeySet(),
		Saved:    r.URL.Query().Get("saved") == "1",
	})
}

// HandleSettingsSave handles POST /settings. An empty key with clear=1
// removes the stored key.
func (h *Handlers) HandleSettingsSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	key := strings.TrimSpace(r.FormValue("api_key"))
	if key == "" && r.FormValue("clear") != "1" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("api_key is required"))
		return
	}
	if err := h.settings.SetAPIKey(key); err != nil {
		h.renderer.renderError(w, r, errors.NewInternal(err))
		return
	}
	h.logger.Info("api key updated", "cleared", key == "")

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{"has_key": key != "", "masked": config.MaskKey(key)})
		return
	}
	http.Redirect(w, r, "/settings?saved=1", http.StatusSeeOther)
}

// HandleEvents handles GET /events, a server-sent event stream that emits
// "meetings" whenever the meeting list changes.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	live := h.store.WatchMeetings(r.Context())
	defer live.Close()
	streamLive(w, live, "meetings", func(ms []meeting.Meeting) int { return len(ms) })
}

// HandleMeetingEvents handles GET /meetings/{id}/events. It emits "images"
// whenever the meeting's image list changes, including attachments made
// from the CLI or MCP.
func (h *Handlers) HandleMeetingEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	live := h.store.WatchImages(r.Context(), id)
	defer live.Close()
	streamLive(w, live, "images", func(imgs []meeting.Image) int { return len(imgs) })
}

// streamLive writes one event per snapshot with the snapshot size as data.
// The first event carries the current state; clients treat it as a
// baseline.
func streamLive[T any](w http.ResponseWriter, live *store.Live[T], event string, size func(T) int) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for snapshot := range live.Updates() {
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %d\n\n", event, size(snapshot)); err != nil {
			return
		}
		flusher.Flush()
	}
}

// pathID parses a positive int64 path value, rendering the error itself
// when it fails.
func (h *Handlers) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := ops.ParseID(r.PathValue(name))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return 0, false
	}
	return id, true
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// formString returns a pointer to the form value. Browsers send CRLF line
// endings from textareas; they are stored as LF.
func formString(r *http.Request, name string) *string {
	v := strings.ReplaceAll(r.PostForm.Get(name), "\r\n", "\n")
	return &v
}

func meetingURL(id int64, view string) string {
	if view == string(session.ViewNotes) || view == string(session.ViewMinutes) {
		return fmt.Sprintf("/meetings/%d?view=%s", id, view)
	}
	return fmt.Sprintf("/meetings/%d", id)
}

func envKeySet() bool {
	return strings.TrimSpace(os.Getenv(config.APIKeyEnv)) != ""
}
