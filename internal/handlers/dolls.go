package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/petermazzocco/go-doll-studio/internal/dolls"
	"github.com/petermazzocco/go-doll-studio/internal/media"
)

// multipartSlack covers the non-file form fields on top of a category's ceiling.
const multipartSlack = 1 << 20

// parseUpload parses a multipart body bounded by cat and returns the named
// file, or nil when the field is absent. It writes the error response itself.
func parseUpload(w http.ResponseWriter, r *http.Request, field string, cat media.Category) (*dolls.Upload, multipart.File, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, cat.MaxBytes+multipartSlack)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("File too large. Maximum size is %dMB.", cat.MaxMiB()))
			return nil, nil, false
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return nil, nil, false
	}

	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, true
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return nil, nil, false
	}
	return &dolls.Upload{Reader: file, Filename: header.Filename}, file, true
}

func CreateDollHandler(w http.ResponseWriter, r *http.Request, svc *dolls.Service) {
	upload, file, ok := parseUpload(w, r, "modelFile", media.Model)
	if !ok {
		return
	}
	if file != nil {
		defer file.Close()
	}

	doll, err := svc.CreateDoll(r.Context(), dolls.CreateDollInput{
		Name:             r.FormValue("name"),
		Story:            r.FormValue("story"),
		Brand:            r.FormValue("brand"),
		PurchaseLocation: r.FormValue("purchaseLocation"),
		Email:            r.FormValue("email"),
		Model:            upload,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doll)
}

func ListDollsHandler(w http.ResponseWriter, r *http.Request, svc *dolls.Service) {
	list, err := svc.ListDolls(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func GetDollHandler(w http.ResponseWriter, r *http.Request, svc *dolls.Service) {
	doll, err := svc.GetDoll(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doll)
}

func DeleteDollHandler(w http.ResponseWriter, r *http.Request, svc *dolls.Service) {
	if err := svc.DeleteDoll(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Doll deleted successfully"})
}

type stickerRequest struct {
	Type     string    `json:"type" validate:"required"`
	Position []float64 `json:"position" validate:"len=3"`
}

func AddStickerHandler(w http.ResponseWriter, r *http.Request, svc *dolls.Service) {
	var req stickerRequest
	if !decodeJSON(w, r, &req, "Type and position [x, y, z] are required") {
		return
	}

	sticker, err := svc.AddSticker(r.Context(), chi.URLParam(r, "id"), dolls.StickerInput{
		Type:     req.Type,
		Position: req.Position,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sticker)
}

func RemoveStickerHandler(w http.ResponseWriter, r *http.Request, svc *dolls.Service) {
	err := svc.RemoveSticker(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "stickerId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Sticker removed successfully"})
}

// SaveVoiceHandler takes personalityTraits as a JSON encoded string field.
func SaveVoiceHandler(w http.ResponseWriter, r *http.Request, svc *dolls.Service) {
	upload, file, ok := parseUpload(w, r, "audioFile", media.Audio)
	if !ok {
		return
	}
	if file != nil {
		defer file.Close()
	}

	err := svc.SaveVoiceProfile(r.Context(), chi.URLParam(r, "id"), dolls.VoiceInput{
		RawTraits: r.FormValue("personalityTraits"),
		APIKey:    r.FormValue("apiKey"),
		Audio:     upload,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Voice profile saved successfully"})
}

type downloadVideoRequest struct {
	VideoURL string `json:"videoUrl" validate:"required"`
	Filename string `json:"filename" validate:"required"`
	DollID   string `json:"dollId"`
}

type downloadVideoResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

func DownloadVideoHandler(w http.ResponseWriter, r *http.Request, svc *dolls.Service) {
	var req downloadVideoRequest
	if !decodeJSON(w, r, &req, "videoUrl and filename are required") {
		return
	}

	video, err := svc.CacheVideo(r.Context(), req.VideoURL, req.Filename)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, downloadVideoResponse{
		Message:  "Video downloaded successfully",
		Filename: video.Filename,
		Path:     video.Path,
	})
}
