package transport

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/brensch/snekline/client"
	"github.com/brensch/snekline/logging"
	"github.com/brensch/snekline/protocol"
	"github.com/brensch/snekline/render"
	"github.com/gin-gonic/gin"
)

// DefaultMaxFeedBytes bounds a POST /feed body.
const DefaultMaxFeedBytes = 4 << 20

// Bridge exposes a Client over HTTP for hosts that drive their bots with
// requests instead of a pipe:
//
//	POST /feed          body is protocol lines, response is the client's output lines
//	GET  /state         JSON view of the session and world
//	GET  /snapshot.png  the world drawn with render.PNG (?width=&height=)
//
// Requests are handled one at a time.
type Bridge struct {
	mu       sync.Mutex
	client   *client.Client
	log      *slog.Logger
	maxBody  int64
	maxLine  int
	renderer render.Options
}

func NewBridge(c *client.Client, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Bridge{
		client:   c,
		log:      logger,
		maxBody:  DefaultMaxFeedBytes,
		maxLine:  protocol.DefaultMaxLineLength,
		renderer: render.DefaultOptions,
	}
}

// Handler builds the gin router.
func (b *Bridge) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), b.requestLog())
	router.POST("/feed", b.Feed)
	router.GET("/state", b.State)
	router.GET("/snapshot.png", b.Snapshot)
	return router
}

func (b *Bridge) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		b.log.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start),
		)
	}
}

// Feed runs each body line through the client and returns what it wrote.
func (b *Bridge) Feed(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, b.maxBody)
	lr := protocol.NewLineReader(body, b.maxLine)

	b.mu.Lock()
	defer b.mu.Unlock()

	var out bytes.Buffer
	for {
		line, err := lr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, protocol.ErrLineTooLong) {
			b.log.Warn("skipped line", "err", err)
			continue
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "output": out.String()})
			return
		}
		if err := b.client.Process(c.Request.Context(), line, &out); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", out.Bytes())
}

// StateResponse is the body of GET /state.
type StateResponse struct {
	SessionID  string       `json:"session_id"`
	Phase      string       `json:"phase"`
	PlayerID   int          `json:"player_id"`
	Turn       int          `json:"turn"`
	InMapCycle bool         `json:"in_map_cycle"`
	Snakes     []SnakeState `json:"snakes"`
	Food       [][2]float64 `json:"food"`
}

type SnakeState struct {
	ID   int          `json:"id"`
	Body [][2]float64 `json:"body"`
}

func (b *Bridge) State(c *gin.Context) {
	b.mu.Lock()
	snap := b.client.Snapshot()
	sess := b.client.Session()
	resp := StateResponse{
		SessionID:  b.client.SessionID(),
		Phase:      sess.Phase().String(),
		PlayerID:   sess.PlayerID(),
		Turn:       b.client.Turn(),
		InMapCycle: b.client.InMapCycle(),
		Snakes:     make([]SnakeState, 0, len(snap.Snakes)),
		Food:       make([][2]float64, 0, len(snap.Food)),
	}
	b.mu.Unlock()

	for _, s := range snap.Snakes {
		st := SnakeState{ID: s.ID, Body: make([][2]float64, 0, len(s.Body))}
		for _, p := range s.Body {
			st.Body = append(st.Body, [2]float64{p.X, p.Y})
		}
		resp.Snakes = append(resp.Snakes, st)
	}
	for _, f := range snap.Food {
		resp.Food = append(resp.Food, [2]float64{f.X, f.Y})
	}
	c.JSON(http.StatusOK, resp)
}

func (b *Bridge) Snapshot(c *gin.Context) {
	opts := b.renderer
	for _, q := range []struct {
		name string
		dst  *int
	}{{"width", &opts.Width}, {"height", &opts.Height}} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > 4096 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + q.name})
			return
		}
		*q.dst = v
	}

	b.mu.Lock()
	snap := b.client.Snapshot()
	opts.SelfID = b.client.Session().PlayerID()
	b.mu.Unlock()

	var buf bytes.Buffer
	if err := render.PNG(&buf, snap, opts); err != nil {
		b.log.Error("render snapshot", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "render failed"})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}
