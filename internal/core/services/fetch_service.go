package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	tvgconfig "github.com/NikitaDmitryuk/telegram-video-grabber/internal/config"
	tvgerrors "github.com/NikitaDmitryuk/telegram-video-grabber/internal/core/errors"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/downloader"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/downloader/factory"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/mediacompat"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/models"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/platform"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/quality"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/sizeguard"
)

// Stage is a user-visible step of a job.
type Stage string

const (
	StageDownloading  Stage = "downloading"
	StageConverting   Stage = "converting"
	StageLowerQuality Stage = "lower_quality"
	StageUploading    Stage = "uploading"
)

// Reporter receives job progress. Implementations must not block for long.
type Reporter interface {
	OnStage(stage Stage, job *models.Job)
	OnProgress(percent float64)
}

type ChainProvider interface {
	ChainFor(p platform.Platform) []downloader.Downloader
}

// Converter makes a downloaded file playable. onStart is called only when the file is rewritten.
type Converter interface {
	Convert(ctx context.Context, path string, onStart func()) (mediacompat.Result, error)
}

type JobStore interface {
	CreateJobDir(id uuid.UUID) (string, error)
	Cleanup(dir string) error
	HasEnoughSpace(required int64) bool
}

// DeliverFunc sends the finished file. The file is removed once it returns.
type DeliverFunc func(ctx context.Context, job *models.Job) error

// Request is one link to fetch for a chat.
type Request struct {
	ChatID   int64
	UserID   int64
	URL      string
	Platform platform.Platform
}

// FetchService turns a link into an uploaded file: download, convert, size check, deliver.
type FetchService struct {
	chains    ChainProvider
	converter Converter
	files     JobStore
	guard     sizeguard.Guard
	ladder    quality.Ladder
	cfg       *tvgconfig.Config
}

func NewFetchService(
	chains ChainProvider,
	converter Converter,
	files JobStore,
	cfg *tvgconfig.Config,
) *FetchService {
	return &FetchService{
		chains:    chains,
		converter: converter,
		files:     files,
		guard:     sizeguard.New(cfg.Download.MaxFileSize),
		ladder:    quality.NewLadder(cfg.Download.QualityLadder),
		cfg:       cfg,
	}
}

// Handle runs one job end to end. The job directory is removed on every exit path.
// The returned job is never nil, so callers can log it even on failure.
func (s *FetchService) Handle(ctx context.Context, req Request, r Reporter, deliver DeliverFunc) (*models.Job, error) {
	job := models.NewJob(req.ChatID, req.UserID, req.URL, req.Platform)
	log := logutils.Log.WithFields(job.LogFields())

	if !req.Platform.Supported() {
		return job, tvgerrors.ErrUnsupportedURL
	}
	if need := s.cfg.Download.MinFreeSpace; need > 0 && !s.files.HasEnoughSpace(need) {
		log.Warn("Not enough free disk space to start a job")
		return job, tvgerrors.ErrInsufficientSpace
	}

	dir, err := s.files.CreateJobDir(job.ID)
	if err != nil {
		return job, tvgerrors.WrapDomainError(err, tvgerrors.ErrInternal)
	}
	job.Dir = dir
	defer func() {
		if err := s.files.Cleanup(dir); err != nil {
			log.WithError(err).Error("Failed to clean up job directory")
		}
	}()

	log.Info("Job started")
	if err := s.fetch(ctx, job, r); err != nil {
		return job, err
	}

	r.OnStage(StageUploading, job)
	if err := deliver(ctx, job); err != nil {
		if ctx.Err() != nil {
			return job, tvgerrors.AsDomainError(ctx.Err())
		}
		var de *tvgerrors.DomainError
		if errors.As(err, &de) {
			return job, err
		}
		return job, tvgerrors.WrapDomainError(err, tvgerrors.ErrUploadFailed)
	}

	log.WithFields(map[string]any{
		"downloader": job.Downloader,
		"tier":       job.Tier.Label(),
		"size":       job.FileSize,
		"converted":  job.Converted,
	}).Info("Job completed")
	return job, nil
}

// fetch walks the quality ladder until a file fits the size limit. A lower tier is tried only when
// the oversize file came from a downloader that honours tiers, so each remaining tier gets one retry.
func (s *FetchService) fetch(ctx context.Context, job *models.Job, r Reporter) error {
	chain := s.chains.ChainFor(job.Platform)
	log := logutils.Log.WithFields(job.LogFields())

	r.OnStage(StageDownloading, job)
	for i, tier := range s.ladder {
		job.Tier = tier
		if i > 0 {
			r.OnStage(StageLowerQuality, job)
		}

		used, err := s.attempt(ctx, job, chain, tier, i > 0, r)
		if err == nil {
			return nil
		}
		if !errors.Is(err, tvgerrors.ErrFileTooLarge) {
			return err
		}

		_, hasNext := s.ladder.Next(i)
		if used == nil || !used.Tiered() || !hasNext {
			return err
		}
		log.WithField("tier", tier.Label()).Info("File too large, retrying at a lower quality")
		s.discard(job)
	}
	return tvgerrors.ErrInternal
}

// attempt downloads, converts and size-checks one tier under its own deadline.
func (s *FetchService) attempt(
	ctx context.Context,
	job *models.Job,
	chain []downloader.Downloader,
	tier quality.Tier,
	tieredOnly bool,
	r Reporter,
) (downloader.Downloader, error) {
	dlCtx := ctx
	if timeout := s.cfg.Download.DownloadTimeout; timeout > 0 {
		var cancel context.CancelFunc
		dlCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	path, used, err := factory.Run(dlCtx, chain, job, tier, tieredOnly, r.OnProgress)
	if err != nil {
		return used, deadlineError(ctx, dlCtx, err)
	}
	job.FilePath = path
	job.Downloader = used.Name()

	res, err := s.converter.Convert(ctx, path, func() { r.OnStage(StageConverting, job) })
	if err != nil {
		return used, err
	}
	job.FilePath, job.Media, job.Converted = res.Path, res.Media, res.Converted

	size, err := s.guard.Check(job.FilePath)
	if err != nil {
		return used, err
	}
	job.FileSize = size
	return used, nil
}

// deadlineError reports the attempt deadline as a timeout even if the tool surfaced it differently.
func deadlineError(parent, attempt context.Context, err error) error {
	if parent.Err() != nil {
		return tvgerrors.AsDomainError(parent.Err())
	}
	if errors.Is(attempt.Err(), context.DeadlineExceeded) {
		return tvgerrors.WrapDomainError(err, tvgerrors.ErrTimeout)
	}
	return tvgerrors.AsDomainError(err)
}

// discard empties the job directory before the next tier runs.
func (*FetchService) discard(job *models.Job) {
	if err := downloader.ClearDir(job.Dir); err != nil {
		logutils.Log.WithError(err).WithField("dir", job.Dir).Warn("Failed to clear job directory")
	}
	job.FilePath, job.FileSize, job.Converted, job.Downloader = "", 0, false, ""
	job.Media = models.MediaVideo
}
