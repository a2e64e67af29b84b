// Wordwarden game
//
// A riddling gatekeeper holds a secret word. Visitors type guesses;
// every wrong guess earns the next clue in the sequence, and after the
// configured number of attempts the game closes and the terminal
// message is shown. Speaking the secret word ends the game in victory.
//
// Features:
// - Per-session URLs: /warden/:sessionid and /warden/:sessionid/ws
// - One goroutine per session; all game state mutations happen there
// - Guess evaluation strategies: exact word, one-way digest, substring,
//   trigger phrase (the last unlocks a generated free-form answer)
// - Responses are revealed character by character client-side; input
//   stays locked until the client confirms the reveal finished
// - Progress persists across reloads and restarts via the keyed store
// - Settings edits (max attempts, secret) over the same websocket
// - Sessions auto-unloaded after a configurable idle timeout
// - Random 8-char session IDs via crypto/rand, with collision check
// - In-browser QR button to share the current session, backed by go-qrcode

package main

import (
	"context"
	"crypto/rand"
	_ "embed"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"wordwarden/internal/warden"
)

// Messages coming from clients
type ClientMessage struct {
	Type        string `json:"type"`                   // "guess", "reveal_done", "configure"
	Text        string `json:"text,omitempty"`         // guess
	ID          string `json:"id,omitempty"`           // reveal_done
	MaxAttempts int    `json:"max_attempts,omitempty"` // configure
	Secret      string `json:"secret,omitempty"`       // configure
}

// GameStateMessage carries the full session snapshot to clients. Sent
// as "session_info" on connect and "game_state" after every change.
type GameStateMessage struct {
	Type         string           `json:"type"`
	Messages     []warden.Message `json:"messages"`
	AttemptCount int              `json:"attempt_count"`
	MaxAttempts  int              `json:"max_attempts"`
	Solved       bool             `json:"solved"`
	Locked       bool             `json:"locked"`
	Closed       bool             `json:"closed"`
}

type Client struct {
	conn *websocket.Conn
	send chan any
}

type clientEvent struct {
	client *Client
	msg    ClientMessage
}

// Hub owns one game session: its engine, its connected clients, and
// the channels that funnel every mutation onto the hub goroutine.
type Hub struct {
	id      string
	clients map[*Client]bool
	engine  *warden.Engine

	register chan *Client
	unreg    chan *Client
	events   chan clientEvent
	tasks    chan func()
	done     chan struct{}

	mu         sync.RWMutex
	lastActive time.Time

	log *zap.Logger
}

func newHub(ctx context.Context, sessionID string, game warden.Config, st warden.Store, answers warden.AnswerProvider, log *zap.Logger) *Hub {
	h := &Hub{
		id:         sessionID,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		events:     make(chan clientEvent),
		tasks:      make(chan func(), 8),
		done:       make(chan struct{}),
		lastActive: time.Now(),
		log:        log.With(zap.String("session", sessionID)),
	}

	gw := warden.NewGateway(st, "session:"+sessionID+":", h.log)
	h.engine = warden.NewEngine(ctx, game, gw, hubScheduler{h}, answers, h.log)
	h.engine.OnChange = h.broadcastState

	return h
}

// hubScheduler delivers deferred work back onto the hub goroutine, so
// the delayed response runs on the same single actor as everything
// else. Work scheduled against an unloaded hub is dropped.
type hubScheduler struct {
	h *Hub
}

func (s hubScheduler) After(d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		select {
		case s.h.tasks <- fn:
		case <-s.h.done:
		}
	})
}

// addClient hands a new client to the hub goroutine. It reports false
// when the hub was unloaded first; the caller then owns the connection.
func (h *Hub) addClient(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// enqueue delivers one client event to the hub goroutine, dropping it
// when the hub was unloaded first.
func (h *Hub) enqueue(ev clientEvent) {
	select {
	case h.events <- ev:
	case <-h.done:
	}
}

func (h *Hub) touch() {
	h.mu.Lock()
	h.lastActive = time.Now()
	h.mu.Unlock()
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.touch()
			h.clients[c] = true

			// Snapshot first, so the client can rebuild the transcript
			// before anything else arrives.
			c.send <- h.snapshotMessage("session_info")

		case c := <-h.unreg:
			h.touch()

			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case ev := <-h.events:
			h.touch()

			switch ev.msg.Type {
			case "guess":
				if h.engine.Submit(ev.msg.Text) {
					h.log.Debug("guess accepted")
				}
			case "reveal_done":
				h.engine.RevealComplete(ev.msg.ID)
			case "configure":
				h.engine.Configure(ev.msg.MaxAttempts, ev.msg.Secret)
				h.log.Debug("session reconfigured",
					zap.Int("max_attempts", h.engine.MaxAttempts()))
			}

		case fn := <-h.tasks:
			fn()

		case <-h.done:
			for c := range h.clients {
				close(c.send)
				_ = c.conn.Close()
				delete(h.clients, c)
			}
			return
		}
	}
}

func (h *Hub) snapshotMessage(msgType string) GameStateMessage {
	sess := h.engine.Snapshot()
	msgs := sess.Messages
	if msgs == nil {
		msgs = []warden.Message{}
	}
	return GameStateMessage{
		Type:         msgType,
		Messages:     msgs,
		AttemptCount: sess.AttemptCount,
		MaxAttempts:  h.engine.MaxAttempts(),
		Solved:       sess.Solved,
		Locked:       sess.Locked(),
		Closed:       h.engine.Closed(),
	}
}

// broadcastState runs on the hub goroutine via engine.OnChange.
func (h *Hub) broadcastState() {
	msg := h.snapshotMessage("game_state")

	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SessionManager holds a set of hubs keyed by session ID, so each
// $path/$sessionid is its own isolated game.
type SessionManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	idleTimeout time.Duration

	ctx     context.Context
	game    warden.Config
	store   warden.Store
	answers warden.AnswerProvider
	log     *zap.Logger
}

func newSessionManager(ctx context.Context, game warden.Config, st warden.Store, answers warden.AnswerProvider, idleTimeout time.Duration, log *zap.Logger) *SessionManager {
	sm := &SessionManager{
		hubs:        make(map[string]*Hub),
		idleTimeout: idleTimeout,
		ctx:         ctx,
		game:        game,
		store:       st,
		answers:     answers,
		log:         log,
	}
	if idleTimeout > 0 {
		go sm.reaperLoop()
	}
	return sm
}

func (sm *SessionManager) getHub(sessionID string) *Hub {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if hub, ok := sm.hubs[sessionID]; ok {
		return hub
	}

	hub := newHub(sm.ctx, sessionID, sm.game, sm.store, sm.answers, sm.log)
	sm.hubs[sessionID] = hub
	go hub.run()
	return hub
}

// newSessionID generates a crypto-random session ID and ensures it
// doesn't collide with loaded sessions.
func (sm *SessionManager) newSessionID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		sm.mu.Lock()
		_, exists := sm.hubs[id]
		sm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reaperLoop periodically unloads hubs that have been idle longer than
// idleTimeout. Session state is already persisted, so an unloaded
// session resumes from the store on the next visit.
func (sm *SessionManager) reaperLoop() {
	ticker := time.NewTicker(sm.idleTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-sm.idleTimeout)

		sm.mu.Lock()
		for id, hub := range sm.hubs {
			hub.mu.RLock()
			last := hub.lastActive
			hub.mu.RUnlock()

			if last.Before(cutoff) {
				delete(sm.hubs, id)
				close(hub.done)
			}
		}
		sm.mu.Unlock()
	}
}

// WebSocket handler that picks the hub based on :sessionid
func serveWSForManager(sm *SessionManager, log *zap.Logger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		sessionID := ps.ByName("sessionid")
		if sessionID == "" {
			http.Error(w, "missing session id", http.StatusBadRequest)
			return
		}

		hub := sm.getHub(sessionID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, 8),
		}

		// The reaper may have unloaded the hub between lookup and now.
		if !hub.addClient(client) {
			_ = conn.Close()
			return
		}

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		// The hub may already be unloaded; don't hang on its channel.
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "guess", "reveal_done", "configure":
			h.enqueue(clientEvent{
				client: c,
				msg:    msg,
			})
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the current session URL.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	sessionID := ps.ByName("sessionid")
	if sessionID == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:sessionid/qr; strip trailing "/qr" for the session URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

//go:embed assets/warden/index.html
var wardenHTML []byte

func serveSessionPage(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(wardenHTML)
	}
}

// redirectNewSession handles GET /path by generating a new random
// session ID and redirecting to /path/:sessionid.
func redirectNewSession(cfg *Config, path string, sm *SessionManager, log *zap.Logger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		sessionID := sm.newSessionID()
		log.Debug("created session", zap.String("session", sessionID))
		http.Redirect(w, r, cfg.prefix+path+"/"+sessionID, http.StatusTemporaryRedirect)
	}
}

// loadClues reads a newline-separated clue file, or falls back to the
// built-in sequence.
func loadClues(cfg *Config) (warden.ClueSequence, error) {
	if cfg.cluesFile == "" {
		return warden.DefaultClues, nil
	}

	raw, err := os.ReadFile(cfg.cluesFile)
	if err != nil {
		return nil, err
	}

	var clues warden.ClueSequence
	for _, line := range strings.Split(string(raw), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			clues = append(clues, line)
		}
	}
	if len(clues) == 0 {
		return warden.DefaultClues, nil
	}
	return clues, nil
}

// gameConfig assembles the engine configuration shared by every
// session of this server.
func gameConfig(cfg *Config) (warden.Config, error) {
	clues, err := loadClues(cfg)
	if err != nil {
		return warden.Config{}, err
	}

	// Terminal and success messages spell the secret out when we know
	// it; the digest strategy only knows the plaintext for the stock
	// secret, otherwise the last clue stands alone.
	reveal := ""
	switch warden.StrategyKind(cfg.strategy) {
	case warden.StrategyExactWord, warden.StrategySubstring:
		reveal = "Secret word is " + strings.TrimSpace(cfg.secret) + "."
	case warden.StrategyHashedDigest:
		if strings.EqualFold(cfg.secretDigest, warden.DefaultSecretDigest) {
			reveal = warden.DefaultRevealText()
		}
	}

	success := "The gate swings open."
	if reveal != "" {
		success += " " + reveal
	}

	return warden.Config{
		Secret:         cfg.secretDefinition(),
		Clues:          clues,
		SuccessText:    success,
		RevealText:     reveal,
		FallbackText:   "The warden strokes his beard, but the magic fizzles. Ask again.",
		Delay:          cfg.responseDelay,
		SolveOnExhaust: cfg.solveOnExhaust,
	}, nil
}

// registerWardenGame sets up routes so that:
//   - $path                  → redirects to new random session (8-char ID)
//   - $path/:sessionid       → HTML client
//   - $path/:sessionid/ws    → WebSocket for that session
//   - $path/:sessionid/qr    → PNG QR code for that session URL
func registerWardenGame(ctx context.Context, cfg *Config, path string, mux *httprouter.Router, st warden.Store, log *zap.Logger) error {
	game, err := gameConfig(cfg)
	if err != nil {
		return err
	}

	// The answer provider only serves the trigger-phrase variant;
	// without a key the fixed fallback line answers instead.
	var answers warden.AnswerProvider
	if warden.StrategyKind(cfg.strategy) == warden.StrategyTriggerPhrase {
		provider, err := warden.NewGenAIAnswerer(ctx, os.Getenv("GEMINI_API_KEY"), cfg.answerModel)
		if err != nil {
			log.Warn("answer provider unavailable, falling back to canned answers", zap.Error(err))
		} else {
			answers = provider
		}
	}

	sm := newSessionManager(ctx, game, st, answers, cfg.sessionTimeout, log)

	// Root path → redirect to new random session
	mux.GET(cfg.prefix+path, redirectNewSession(cfg, path, sm, log))

	// Per-session client view (HTML)
	mux.GET(cfg.prefix+path+"/:sessionid", serveSessionPage(cfg))

	// Per-session websocket
	mux.GET(cfg.prefix+path+"/:sessionid/ws", serveWSForManager(sm, log))

	// Per-session QR code
	mux.GET(cfg.prefix+path+"/:sessionid/qr", qrHandler)

	return nil
}
