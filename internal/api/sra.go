package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"sra-backend/internal/database"
	"sra-backend/internal/docparse"
	"sra-backend/internal/history"
	"sra-backend/internal/sra"
	"sra-backend/internal/storage"
	"sra-backend/pkg/api"
)

const maxUploadBytes = 32 << 20

// SRAService exposes the Spectral Resonance Art endpoints. The query endpoint
// acknowledges immediately and runs the turn in the background; results reach
// the client through the session's event channel.
type SRAService struct {
	db           *gorm.DB
	store        *history.Store
	objects      storage.ObjectStore
	orchestrator *sra.Service
}

func NewSRAService(db *gorm.DB, objects storage.ObjectStore, orchestrator *sra.Service) *SRAService {
	return &SRAService{
		db:           db,
		store:        history.NewStore(db),
		objects:      objects,
		orchestrator: orchestrator,
	}
}

func (s *SRAService) AddRoutes(r chi.Router) {
	r.Route("/sra", func(r chi.Router) {
		r.Post("/query", RestHandler(s.Query))
		r.Post("/uploads", RestHandler(s.Upload))
		r.Get("/history", RestHandler(s.GetHistory))
	})
}

func (s *SRAService) Query(r *http.Request) (any, error) {
	req, err := ParseRequest[api.QueryRequest](r)
	if err != nil {
		return nil, err
	}
	if req.SessionId == "" || req.MessageId == "" || req.Prompt == "" || req.Email == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "session_id, message_id, prompt, and email are required")
	}

	if err := s.store.SaveUserTurn(r.Context(), req.SessionId, req.MessageId, req.Email, req.Prompt); err != nil {
		if errors.Is(err, history.ErrUserNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "unknown user %s", req.Email)
		}
		return nil, CodedErrorf(http.StatusInternalServerError, "error saving message: %v", err)
	}

	turn := sra.Request{
		SessionId:           req.SessionId,
		MessageId:           req.MessageId,
		Prompt:              req.Prompt,
		AspectRatio:         req.AspectRatio,
		ArtStyle:            req.ArtStyle,
		ArtStyleDescription: req.ArtStyleDescription,
		Email:               req.Email,
		ChannelId:           req.ChannelId,
	}

	// The turn outlives the request; results are pushed over the channel.
	go s.orchestrator.HandleQuery(context.Background(), turn)

	return api.QueryResponse{SessionId: req.SessionId, MessageId: req.MessageId, Accepted: true}, nil
}

func (s *SRAService) Upload(r *http.Request) (any, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "unable to parse multipart form")
	}

	sessionId := r.FormValue("session_id")
	if sessionId == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "session_id is required")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "error reading file: %v", err)
	}

	fileType := header.Header.Get("Content-Type")
	upload := database.FileUpload{
		Id:        uuid.New(),
		SessionId: sessionId,
		FileType:  fileType,
		CreatedAt: time.Now().UTC(),
	}

	if docparse.IsImageType(fileType) {
		key := fmt.Sprintf("uploads/%s_%s", upload.Id, header.Filename)
		url, err := s.objects.PutObject(r.Context(), key, fileType, bytes.NewReader(data))
		if err != nil {
			return nil, CodedErrorf(http.StatusInternalServerError, "error storing file: %v", err)
		}
		upload.FileUrl = &url
	} else {
		text, err := docparse.ExtractText(data, fileType)
		if err != nil {
			return nil, CodedErrorf(http.StatusBadRequest, "unsupported file type %q", fileType)
		}
		upload.FileContent = &text
	}

	if err := s.store.SaveUpload(r.Context(), &upload); err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "error saving upload: %v", err)
	}

	res := api.UploadResponse{UploadId: upload.Id.String(), FileType: fileType}
	if upload.FileUrl != nil {
		res.FileUrl = *upload.FileUrl
	}
	return res, nil
}

func (s *SRAService) GetHistory(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.HistoryRequest](r)
	if err != nil {
		return nil, err
	}
	if params.SessionId == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "session_id is required")
	}

	window := history.DefaultWindow
	if params.WindowHours > 0 {
		window = time.Duration(params.WindowHours) * time.Hour
	}

	turns := s.store.RecentTurns(r.Context(), params.SessionId, window)
	res := api.HistoryResponse{Turns: make([]api.ChatTurn, 0, len(turns))}
	for _, turn := range turns {
		res.Turns = append(res.Turns, api.ChatTurn{
			SessionId: turn.SessionId,
			MessageId: turn.MessageId,
			IsUser:    turn.IsUser,
			Message:   turn.Message,
			Response:  turn.Response,
			ImageUrl:  turn.ImageUrl,
			CreatedAt: turn.CreatedAt,
		})
	}
	return res, nil
}
