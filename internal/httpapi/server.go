// Package httpapi exposes the dubbing service over HTTP: uploads, job
// status, a websocket event stream, and the finished artifacts.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/alnah/go-dub/internal/job"
	"github.com/alnah/go-dub/internal/lang"
	"github.com/alnah/go-dub/internal/logging"
)

// allowedExtensions are the upload container formats ffmpeg handles
// without surprises.
var allowedExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".webm": true, ".mov": true, ".avi": true, ".m4v": true,
}

// Runner executes a job; the pipeline implements it.
type Runner interface {
	Run(ctx context.Context, j *job.Job) error
}

// Server wires the HTTP surface to the store, hub, and pipeline.
type Server struct {
	echo     *echo.Echo
	log      *logging.Logger
	store    job.Store
	hub      *job.Hub
	runner   Runner
	upgrader websocket.Upgrader

	uploadDir      string
	filesDir       string // empty when artifacts live in object storage
	maxUploadBytes int64

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// Options configures the Server.
type Options struct {
	UploadDir      string
	FilesDir       string
	MaxUploadBytes int64
}

// New creates the server and registers its routes.
func New(log *logging.Logger, store job.Store, hub *job.Hub, runner Runner, opts Options) *Server {
	s := &Server{
		echo:           echo.New(),
		log:            log,
		store:          store,
		hub:            hub,
		runner:         runner,
		uploadDir:      opts.UploadDir,
		filesDir:       opts.FilesDir,
		maxUploadBytes: opts.MaxUploadBytes,
		cancels:        make(map[string]context.CancelFunc),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())

	s.echo.POST("/upload", s.handleUpload)
	s.echo.GET("/status/:id", s.handleStatus)
	s.echo.GET("/jobs", s.handleList)
	s.echo.POST("/cancel/:id", s.handleCancel)
	s.echo.GET("/events/:id", s.handleEvents)
	s.echo.GET("/healthz", s.handleHealth)
	if opts.FilesDir != "" {
		s.echo.Static("/files", opts.FilesDir)
	}

	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops the listener and cancels every running job.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()
	return s.echo.Shutdown(ctx)
}

type statusResponse struct {
	ID             string  `json:"id"`
	Filename       string  `json:"filename"`
	TargetLanguage string  `json:"target_language"`
	Mode           string  `json:"mode"`
	Status         string  `json:"status"`
	Progress       float64 `json:"progress"`
	FailReason     string  `json:"fail_reason,omitempty"`
	Error          string  `json:"error,omitempty"`
	ChunksDone     int     `json:"chunks_done"`
	ChunksTotal    int     `json:"chunks_total"`
	ResultURL      string  `json:"result_url,omitempty"`
	SubtitleURL    string  `json:"subtitle_url,omitempty"`
}

func toStatusResponse(j *job.Job) statusResponse {
	return statusResponse{
		ID:             j.ID,
		Filename:       j.Filename,
		TargetLanguage: j.TargetLanguage,
		Mode:           string(j.Mode),
		Status:         string(j.Status),
		Progress:       j.Progress,
		FailReason:     string(j.FailReason),
		Error:          j.Error,
		ChunksDone:     j.ChunksDone,
		ChunksTotal:    j.ChunksTotal,
		ResultURL:      j.ResultURL,
		SubtitleURL:    j.SubtitlePath,
	}
}

func (s *Server) handleUpload(c echo.Context) error {
	targetLanguage := lang.Normalize(c.FormValue("target_language"))
	if err := lang.Validate(targetLanguage); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	mode := job.Mode(c.FormValue("mode"))
	switch mode {
	case "":
		mode = job.ModeDub
	case job.ModeDub, job.ModeSubtitle, job.ModeBoth:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown mode %q", mode))
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file field is required")
	}
	if s.maxUploadBytes > 0 && fileHeader.Size > s.maxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds %d byte limit", s.maxUploadBytes))
	}
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedExtensions[ext] {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("unsupported container %q (accepted: mp4, mkv, webm, mov, avi, m4v)", ext))
	}

	srcPath, err := s.saveUpload(fileHeader)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "storing upload failed")
	}

	j := job.New(filepath.Base(fileHeader.Filename), srcPath, targetLanguage, mode)
	if err := s.store.Create(c.Request().Context(), j); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "creating job failed")
	}

	s.launch(j)

	return c.JSON(http.StatusAccepted, toStatusResponse(j))
}

func (s *Server) saveUpload(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", err
	}
	dstPath := filepath.Join(s.uploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(fh.Filename)))
	dst, err := os.Create(dstPath) // #nosec G304 -- name is a fresh UUID
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dstPath)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(dstPath)
		return "", err
	}
	return dstPath, nil
}

// launch runs the job in the background with its own cancellable context.
func (s *Server) launch(j *job.Job) {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[j.ID] = cancel
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.cancels, j.ID)
			s.mu.Unlock()
			cancel()
			os.Remove(j.SourcePath)
		}()

		if err := s.runner.Run(ctx, j); err != nil {
			s.log.Errorf("job %s: %v", j.ID, err)
		}
	}()
}

func (s *Server) handleStatus(c echo.Context) error {
	j, err := s.store.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, job.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "unknown job")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "loading job failed")
	}
	return c.JSON(http.StatusOK, toStatusResponse(j))
}

func (s *Server) handleList(c echo.Context) error {
	jobs, err := s.store.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "listing jobs failed")
	}
	out := make([]statusResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toStatusResponse(j))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleCancel(c echo.Context) error {
	id := c.Param("id")

	s.mu.Lock()
	cancel, running := s.cancels[id]
	s.mu.Unlock()

	if !running {
		j, err := s.store.Get(c.Request().Context(), id)
		if errors.Is(err, job.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "unknown job")
		}
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "loading job failed")
		}
		return echo.NewHTTPError(http.StatusConflict,
			fmt.Sprintf("job already %s", j.Status))
	}

	cancel()
	return c.NoContent(http.StatusAccepted)
}

// handleEvents streams job events over a websocket. The current state is
// sent first so clients need no separate status fetch; the stream closes
// after a terminal event.
func (s *Server) handleEvents(c echo.Context) error {
	id := c.Param("id")
	j, err := s.store.Get(c.Request().Context(), id)
	if errors.Is(err, job.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "unknown job")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "loading job failed")
	}

	events, unsubscribe := s.hub.Subscribe(id)
	defer unsubscribe()

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	snapshot := job.Event{JobID: j.ID, Status: j.Status, Progress: j.Progress, At: j.UpdatedAt}
	if err := conn.WriteJSON(snapshot); err != nil {
		return nil
	}
	if j.Status.Terminal() {
		return nil
	}

	for ev := range events {
		if err := conn.WriteJSON(ev); err != nil {
			return nil
		}
		if ev.Status.Terminal() {
			return nil
		}
	}
	return nil
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
