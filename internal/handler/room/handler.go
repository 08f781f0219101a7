package room

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	roomService "github.com/nsong/lingotalk/internal/service/room"
	"github.com/nsong/lingotalk/internal/transport"
	"github.com/nsong/lingotalk/pkg/utils"
)

// Handler exposes the room server's HTTP surface.
type Handler struct {
	store *roomService.Store
	hub   *roomService.Hub
	log   *zap.Logger
}

// New creates the room handler.
func New(store *roomService.Store, hub *roomService.Hub, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{store: store, hub: hub, log: log}
}

// RegisterRoutes wires the room routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/rooms", h.handleCreateRoom)
	r.Get("/rooms/{code}/messages", h.handleFetchSince)
	r.Post("/rooms/{code}/messages", h.handleSendMessage)
	r.Post("/rooms/{code}/presence", h.handlePresence)
	r.Get("/rooms/{code}/ws", h.handleStream)
}

func (h *Handler) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	room := h.store.Create()
	h.log.Info("room created", zap.String("code", room.Code), zap.Int64("id", room.ID))
	utils.RespondJSON(w, http.StatusCreated, map[string]any{
		"id":   room.ID,
		"code": room.Code,
	})
}

func (h *Handler) handleFetchSince(w http.ResponseWriter, r *http.Request) {
	room, ok := h.store.Find(chi.URLParam(r, "code"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, roomService.ErrRoomNotFound.Error())
		return
	}

	after := r.URL.Query().Get("after")
	messages := room.Since(after)
	if messages == nil {
		messages = []transport.Payload{}
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	room, ok := h.store.Find(chi.URLParam(r, "code"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, roomService.ErrRoomNotFound.Error())
		return
	}

	var payload struct {
		Text   string           `json:"text"`
		Sender transport.Sender `json:"sender"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Text == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	message := room.Append(payload.Text, payload.Sender, false)
	h.hub.Broadcast(room.Code, message)
	utils.RespondJSON(w, http.StatusCreated, map[string]any{
		"created": true,
		"message": message,
	})
}

func (h *Handler) handlePresence(w http.ResponseWriter, r *http.Request) {
	room, ok := h.store.Find(chi.URLParam(r, "code"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, roomService.ErrRoomNotFound.Error())
		return
	}

	var payload struct {
		Kind   string           `json:"kind"`
		Sender transport.Sender `json:"sender"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var text string
	switch transport.PresenceKind(payload.Kind) {
	case transport.PresenceJoined:
		text = payload.Sender.Nickname + " joined the room"
	case transport.PresenceLeft:
		text = payload.Sender.Nickname + " left the room"
	default:
		utils.RespondError(w, http.StatusBadRequest, "unknown presence kind")
		return
	}

	notice := room.Append(text, transport.Sender{}, true)
	h.hub.Broadcast(room.Code, notice)
	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
}
