package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nidhogg/catcity/internal/command"
	"github.com/nidhogg/catcity/internal/events"
	"github.com/nidhogg/catcity/internal/game"
	"github.com/nidhogg/catcity/internal/gateway"
	"github.com/nidhogg/catcity/internal/social"
	"github.com/nidhogg/catcity/internal/store"
	"go.uber.org/zap"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	game        *game.Game
	gw          *gateway.Gateway
	restGW      *gateway.RESTAdapter
	ws          *gateway.WebSocketAdapter
	broadcaster *gateway.Broadcaster
	commands    *command.Registry
	recorder    store.Recorder
	relations   *social.Graph
	started     time.Time
	logger      *zap.Logger
}

// NewHandler creates a new API handler. Any transport may be nil; its routes
// then answer 503.
func NewHandler(
	g *game.Game,
	gw *gateway.Gateway,
	restGW *gateway.RESTAdapter,
	ws *gateway.WebSocketAdapter,
	broadcaster *gateway.Broadcaster,
	commands *command.Registry,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		game:        g,
		gw:          gw,
		restGW:      restGW,
		ws:          ws,
		broadcaster: broadcaster,
		commands:    commands,
		started:     time.Now(),
		logger:      logger,
	}
}

// SetRecorder enables the /history routes.
func (h *Handler) SetRecorder(r store.Recorder) { h.recorder = r }

// SetRelations enables the /relations routes.
func (h *Handler) SetRelations(g *social.Graph) { h.relations = g }

// Router returns the chi router with all routes mounted.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Get("/snapshot", h.snapshot)

		r.Get("/player", h.getPlayer)
		r.Post("/player/{action}", h.playerAction)

		r.Get("/presence", h.listResidents)
		r.Post("/presence/start", h.startPresence)
		r.Post("/presence/stop", h.stopPresence)

		r.Get("/chat/messages", h.globalMessages)
		r.Post("/chat/messages", h.sendMessage)
		r.Post("/chat/read", h.markGlobalRead)
		r.Delete("/chat", h.clearChat)
		r.Get("/chat/unread", h.unread)
		r.Get("/chat/conversations/{a}/{b}", h.conversation)
		r.Post("/chat/conversations/{a}/{b}/read", h.markConversationRead)
		r.Delete("/chat/conversations/{a}/{b}", h.clearConversation)

		r.Get("/events", h.listEvents)
		r.Post("/events", h.addEvent)
		r.Get("/events/current", h.currentEvent)

		r.Get("/history/messages", h.historyMessages)
		r.Get("/history/events", h.historyEvents)
		r.Get("/relations/{id}", h.relationsFor)

		r.Post("/command", h.runCommand)
		r.Post("/broadcast", h.sendBroadcast)
		r.Get("/broadcasts", h.listBroadcasts)

		r.Get("/gateway/status", h.gatewayStatus)
		if h.restGW != nil {
			r.Mount("/gateway/rest", h.restGW.Routes())
		}
		if h.ws != nil {
			r.Get("/ws", h.ws.Handler())
		}
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"world":  "catcity",
		"seed":   strconv.FormatUint(h.game.Seed(), 10),
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.game.Snapshot())
}

func (h *Handler) getPlayer(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.game.Player.State())
}

type actionRequest struct {
	Args []string `json:"args"`
}

func (h *Handler) playerAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	action := chi.URLParam(r, "action")
	if err := command.ApplyPlayerAction(h.game.Player, action, req.Args); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, h.game.Player.State())
}

func (h *Handler) listResidents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"running": h.game.Presence.Running(),
		"agents":  h.game.Presence.Roster(),
	})
}

func (h *Handler) startPresence(w http.ResponseWriter, r *http.Request) {
	h.game.Presence.Start()
	writeJSON(w, http.StatusOK, h.game.Presence.Roster())
}

func (h *Handler) stopPresence(w http.ResponseWriter, r *http.Request) {
	h.game.Presence.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (h *Handler) globalMessages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.game.Chat.Global())
}

type messageRequest struct {
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Body       string `json:"body"`
	TargetID   string `json:"target_id"`
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body is required"})
		return
	}
	id, name := (&command.CommandContext{UserID: req.SenderID, UserName: req.SenderName}).Sender()
	msg := h.game.Chat.SendMessage(id, name, body, true, req.TargetID)
	writeJSON(w, http.StatusCreated, msg)
}

func (h *Handler) markGlobalRead(w http.ResponseWriter, r *http.Request) {
	h.game.Chat.MarkGlobalRead()
	writeJSON(w, http.StatusOK, map[string]int{"unread": h.game.Chat.UnreadGlobal()})
}

func (h *Handler) clearChat(w http.ResponseWriter, r *http.Request) {
	h.game.Chat.ClearAll()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unread(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{
		"global":  h.game.Chat.UnreadGlobal(),
		"private": h.game.Chat.TotalUnreadPrivate(),
	})
}

func (h *Handler) conversation(w http.ResponseWriter, r *http.Request) {
	a, b := chi.URLParam(r, "a"), chi.URLParam(r, "b")
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": h.game.Chat.Conversation(a, b),
		"unread":   h.game.Chat.UnreadConversation(a, b),
	})
}

func (h *Handler) markConversationRead(w http.ResponseWriter, r *http.Request) {
	a, b := chi.URLParam(r, "a"), chi.URLParam(r, "b")
	h.game.Chat.MarkConversationRead(a, b)
	writeJSON(w, http.StatusOK, map[string]int{"unread": h.game.Chat.UnreadConversation(a, b)})
}

func (h *Handler) clearConversation(w http.ResponseWriter, r *http.Request) {
	h.game.Chat.ClearConversation(chi.URLParam(r, "a"), chi.URLParam(r, "b"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.game.Events.History())
}

type eventRequest struct {
	Category string `json:"category"`
	Subject  string `json:"subject"`
	Message  string `json:"message"`
}

func (h *Handler) addEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cat := events.Category(strings.ToLower(req.Category))
	if !cat.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown category " + strconv.Quote(req.Category)})
		return
	}
	ev := command.PostEvent(h.game.Events, cat, req.Subject, req.Message)
	writeJSON(w, http.StatusCreated, ev)
}

func (h *Handler) currentEvent(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"pending": h.game.Events.Pending()}
	if ev, ok := h.game.Events.Current(); ok {
		resp["event"] = ev
	} else {
		resp["event"] = nil
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) historyMessages(w http.ResponseWriter, r *http.Request) {
	if h.recorder == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "history store not configured"})
		return
	}
	limit := queryLimit(r)
	a, b := r.URL.Query().Get("a"), r.URL.Query().Get("b")
	var err error
	var out any
	if a != "" && b != "" {
		out, err = h.recorder.ConversationMessages(r.Context(), a, b, limit)
	} else {
		out, err = h.recorder.RecentMessages(r.Context(), limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) historyEvents(w http.ResponseWriter, r *http.Request) {
	if h.recorder == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "history store not configured"})
		return
	}
	limit := queryLimit(r)
	var err error
	var out any
	if subject := r.URL.Query().Get("subject"); subject != "" {
		out, err = h.recorder.EventsFor(r.Context(), subject, limit)
	} else {
		out, err = h.recorder.RecentEvents(r.Context(), limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) relationsFor(w http.ResponseWriter, r *http.Request) {
	if h.relations == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "relation graph not configured"})
		return
	}
	rels, err := h.relations.Relations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rels)
}

type commandRequest struct {
	Input    string `json:"input"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

func (h *Handler) runCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	input := strings.TrimSpace(req.Input)
	if !strings.HasPrefix(input, "/") {
		input = "/" + input
	}
	result, err := h.commands.Dispatch(r.Context(), input, &command.CommandContext{
		Platform: "http",
		UserID:   req.UserID,
		UserName: req.UserName,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) sendBroadcast(w http.ResponseWriter, r *http.Request) {
	var msg gateway.BroadcastMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if msg.Type == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "type is required"})
		return
	}
	if h.broadcaster == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "broadcaster not initialized"})
		return
	}
	if err := h.broadcaster.Send(r.Context(), &msg); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "broadcast sent"})
}

func (h *Handler) listBroadcasts(w http.ResponseWriter, r *http.Request) {
	if h.broadcaster == nil {
		writeJSON(w, http.StatusOK, []gateway.BroadcastRecord{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, h.broadcaster.History(limit))
}

func (h *Handler) gatewayStatus(w http.ResponseWriter, r *http.Request) {
	if h.gw == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "gateway not initialized"})
		return
	}
	writeJSON(w, http.StatusOK, h.gw.StatusAll())
}

// decodeOptional decodes a JSON body, treating an empty body as zero value.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func queryLimit(r *http.Request) int {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return n
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
