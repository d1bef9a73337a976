package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"pulse/internal/classifier"
	"pulse/internal/queue"
	"pulse/internal/recommend"
	"pulse/internal/store"
	"pulse/pkg/config"
	"pulse/pkg/llm"
	"pulse/pkg/middleware"
	"pulse/pkg/storage"
)

// Deps are the collaborators injected into the handlers. Optional ones may be
// nil: a nil Publisher skips job dispatch, a nil Blobs rejects inline audio
// uploads, a nil ChatLLM makes /chat answer with a server error (there is no
// degraded substitute for the conversational provider).
type Deps struct {
	Classifier  *classifier.Classifier
	Recommender *recommend.Service
	Publisher   queue.Publisher
	Blobs       storage.BlobStore
	ChatLLM     llm.Client
	Logger      *logrus.Logger
}

type Handlers struct {
	cfg         *config.Config
	db          *gorm.DB
	snapshots   *store.SnapshotStore
	chats       *store.ChatStore
	classifier  *classifier.Classifier
	recommender *recommend.Service
	publisher   queue.Publisher
	blobs       storage.BlobStore
	chatLLM     llm.Client
	logger      *logrus.Logger
}

func NewHandlers(cfg *config.Config, db *gorm.DB, deps Deps) *Handlers {
	return &Handlers{
		cfg:         cfg,
		db:          db,
		snapshots:   store.NewSnapshotStore(db, deps.Logger),
		chats:       store.NewChatStore(db, deps.Logger),
		classifier:  deps.Classifier,
		recommender: deps.Recommender,
		publisher:   deps.Publisher,
		blobs:       deps.Blobs,
		chatLLM:     deps.ChatLLM,
		logger:      deps.Logger,
	}
}

func (h *Handlers) Register(engine *gin.Engine) {
	r := engine.Group(h.cfg.APIPrefix)

	r.GET("/healthz", h.HealthCheck)

	mood := r.Group("/mood")
	{
		mood.POST("", h.AuthRequired(), h.HandleMood)
		mood.GET("/history", h.AuthRequired(), h.HandleMoodHistory)
		// Worker callback: service credential, never user auth.
		mood.POST("/:id/transcription", middleware.ServiceKeyRequired(h.cfg.ServiceKey), h.HandleTranscriptionCallback)
	}

	r.POST("/chat", h.AuthRequired(), h.HandleChat)
}
