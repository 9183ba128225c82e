package services

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"sync"
	"time"

	"github.com/rohits-web03/meetingvault/internal/metrics"
	"github.com/rohits-web03/meetingvault/internal/models"
	"github.com/rohits-web03/meetingvault/internal/repositories"
	"github.com/rohits-web03/meetingvault/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	audioContentTypes = []string{"audio/wav", "audio/x-wav"}
	textContentTypes  = []string{"text/plain"}
)

// ObjectStore is the blob storage the service uploads meeting files to.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	KeyFromURL(url string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
}

// MeetingStore is the relational store for meeting records.
type MeetingStore interface {
	Insert(ctx context.Context, m *models.Meeting) error
	Get(ctx context.Context, id uint) (models.Meeting, bool, error)
	List(ctx context.Context) ([]models.Meeting, error)
	Update(ctx context.Context, id uint, u models.MeetingUpdate) (models.Meeting, bool, error)
	Delete(ctx context.Context, id uint) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
	ResetIDSequence(ctx context.Context) error
}

type Options struct {
	// CompensateOnFailure deletes the objects a failed create already uploaded.
	CompensateOnFailure bool
	// DeleteAllConcurrency bounds how many records have their objects deleted at once.
	DeleteAllConcurrency int
}

// Upload is one file of a create request, fully read into memory.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type CreateMeetingInput struct {
	CompanyName     string
	MeetingName     string
	MeetingDatetime string
	Wav             Upload
	SummaryTxt      Upload
	WholeMeetingTxt Upload
}

// UpdateMeetingInput carries the raw form values of an update. Empty values leave the
// field unchanged; whitespace-only values are rejected.
type UpdateMeetingInput struct {
	CompanyName     string
	MeetingName     string
	MeetingDatetime string
}

// MeetingService sequences object storage and record store calls for the meeting lifecycle.
// Nothing spans both stores transactionally: a failure partway through create
// leaves uploaded objects behind, and delete removes the row even when some
// objects could not be deleted.
type MeetingService struct {
	objects ObjectStore
	store   MeetingStore
	log     *zap.Logger
	opts    Options
}

func NewMeetingService(objects ObjectStore, store MeetingStore, log *zap.Logger, opts Options) *MeetingService {
	if opts.DeleteAllConcurrency <= 0 {
		opts.DeleteAllConcurrency = 1
	}
	return &MeetingService{
		objects: objects,
		store:   store,
		log:     log.Named("meeting.service"),
		opts:    opts,
	}
}

// Create validates the request, uploads audio, summary and full transcript in
// that order, then inserts the record.
func (s *MeetingService) Create(ctx context.Context, in CreateMeetingInput) (m models.Meeting, err error) {
	begin := time.Now()
	defer func() { metrics.ObserveOperation("create", outcome(err, true), begin) }()

	m, err = validateCreate(in)
	if err != nil {
		return models.Meeting{}, err
	}

	steps := []struct {
		key  string
		file Upload
		dst  *string
	}{
		{repositories.AudioKey(in.Wav.Filename), in.Wav, &m.WavURL},
		{repositories.SummaryKey(in.SummaryTxt.Filename), in.SummaryTxt, &m.SummaryTxtURL},
		{repositories.TranscriptKey(in.WholeMeetingTxt.Filename), in.WholeMeetingTxt, &m.WholeMeetingTxtURL},
	}

	uploaded := make([]string, 0, len(steps))
	for _, step := range steps {
		url, err := s.objects.Put(ctx, step.key, step.file.Data, step.file.ContentType)
		if err != nil {
			s.abandon(ctx, uploaded)
			return models.Meeting{}, ensureKind(models.ErrStorageUnavailable, err)
		}
		*step.dst = url
		uploaded = append(uploaded, step.key)
	}

	if err := s.store.Insert(ctx, &m); err != nil {
		s.abandon(ctx, uploaded)
		return models.Meeting{}, ensureKind(models.ErrPersistence, err)
	}

	s.log.Info("meeting saved",
		zap.Uint("id", m.ID),
		zap.String("company_name", m.CompanyName),
		zap.String("meeting_name", m.MeetingName),
	)
	return m, nil
}

func (s *MeetingService) Get(ctx context.Context, id uint) (m models.Meeting, found bool, err error) {
	begin := time.Now()
	defer func() { metrics.ObserveOperation("get", outcome(err, found), begin) }()

	m, found, err = s.store.Get(ctx, id)
	if err != nil {
		return models.Meeting{}, false, ensureKind(models.ErrPersistence, err)
	}
	return m, found, nil
}

// List returns every record; an empty store yields an empty, non-nil slice.
func (s *MeetingService) List(ctx context.Context) (meetings []models.Meeting, err error) {
	begin := time.Now()
	defer func() { metrics.ObserveOperation("list", outcome(err, true), begin) }()

	meetings, err = s.store.List(ctx)
	if err != nil {
		return nil, ensureKind(models.ErrPersistence, err)
	}
	if meetings == nil {
		meetings = []models.Meeting{}
	}
	return meetings, nil
}

// Update changes metadata only. File attachments are immutable once stored.
func (s *MeetingService) Update(ctx context.Context, id uint, in UpdateMeetingInput) (m models.Meeting, found bool, err error) {
	begin := time.Now()
	defer func() { metrics.ObserveOperation("update", outcome(err, found), begin) }()

	u, err := validateUpdate(in)
	if err != nil {
		return models.Meeting{}, false, err
	}

	m, found, err = s.store.Update(ctx, id, u)
	if err != nil {
		return models.Meeting{}, false, ensureKind(models.ErrPersistence, err)
	}
	if found {
		s.log.Info("meeting updated", zap.Uint("id", id))
	}
	return m, found, nil
}

// Delete removes the three objects of a record (audio, summary, full text),
// then the row, then rewinds the id sequence. The row is removed even when an
// object deletion fails; that failure is still reported. deleted is true
// whenever the row was removed.
func (s *MeetingService) Delete(ctx context.Context, id uint) (deleted bool, err error) {
	begin := time.Now()
	defer func() { metrics.ObserveOperation("delete", outcome(err, deleted), begin) }()

	m, found, err := s.store.Get(ctx, id)
	if err != nil {
		return false, ensureKind(models.ErrPersistence, err)
	}
	if !found {
		return false, nil
	}

	storageErr := s.deleteObjects(ctx, m)

	deleted, err = s.store.Delete(ctx, id)
	if err != nil {
		return false, errors.Join(ensureKind(models.ErrPersistence, err), storageErr)
	}
	if !deleted {
		// removed by a concurrent request between Get and Delete
		return false, storageErr
	}

	// TODO: stop rewinding the sequence on single deletes once clients no longer rely on id reuse.
	if err := s.store.ResetIDSequence(ctx); err != nil {
		return true, errors.Join(ensureKind(models.ErrPersistence, err), storageErr)
	}

	s.log.Info("meeting deleted", zap.Uint("id", id))
	return true, storageErr
}

// DeleteAll deletes the objects of every record without stopping at the first
// failure, then removes all rows and rewinds the id sequence. It returns the
// number of rows removed.
func (s *MeetingService) DeleteAll(ctx context.Context) (n int64, err error) {
	begin := time.Now()
	defer func() { metrics.ObserveOperation("delete_all", outcome(err, true), begin) }()

	meetings, err := s.store.List(ctx)
	if err != nil {
		return 0, ensureKind(models.ErrPersistence, err)
	}
	if len(meetings) == 0 {
		return 0, nil
	}

	var (
		mu          sync.Mutex
		storageErrs []error
	)
	g := new(errgroup.Group)
	g.SetLimit(s.opts.DeleteAllConcurrency)
	for _, m := range meetings {
		g.Go(func() error {
			if err := s.deleteObjects(ctx, m); err != nil {
				mu.Lock()
				storageErrs = append(storageErrs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	storageErr := errors.Join(storageErrs...)

	n, err = s.store.DeleteAll(ctx)
	if err != nil {
		return 0, errors.Join(ensureKind(models.ErrPersistence, err), storageErr)
	}
	if err := s.store.ResetIDSequence(ctx); err != nil {
		return n, errors.Join(ensureKind(models.ErrPersistence, err), storageErr)
	}

	s.log.Info("all meetings deleted", zap.Int64("count", n), zap.Int("failed_records", len(storageErrs)))
	return n, storageErr
}

// DownloadURL returns a temporary link to one artifact of a record. A record
// whose object is gone from the bucket yields ErrNotFound rather than a dead link.
func (s *MeetingService) DownloadURL(ctx context.Context, id uint, artifact models.Artifact, expires time.Duration) (url string, found bool, err error) {
	begin := time.Now()
	defer func() { metrics.ObserveOperation("download", outcome(err, found), begin) }()

	if !artifact.Valid() {
		return "", false, models.NewValidationError("artifact", "must be one of wav, summary, whole")
	}

	m, found, err := s.store.Get(ctx, id)
	if err != nil {
		return "", false, ensureKind(models.ErrPersistence, err)
	}
	if !found {
		return "", false, nil
	}

	stored, _ := m.URL(artifact)
	key, err := s.objects.KeyFromURL(stored)
	if err != nil {
		return "", true, err
	}
	exists, err := s.objects.Exists(ctx, key)
	if err != nil {
		return "", true, ensureKind(models.ErrStorageUnavailable, err)
	}
	if !exists {
		return "", true, fmt.Errorf("%w: %s file of meeting %d is missing from storage", models.ErrNotFound, artifact, id)
	}
	url, err = s.objects.PresignGet(ctx, key, expires)
	if err != nil {
		return "", true, ensureKind(models.ErrStorageUnavailable, err)
	}
	return url, true, nil
}

// deleteObjects attempts all three deletions in fixed order and joins the failures.
func (s *MeetingService) deleteObjects(ctx context.Context, m models.Meeting) error {
	var errs []error
	for _, artifact := range models.Artifacts {
		url, _ := m.URL(artifact)
		key, err := s.objects.KeyFromURL(url)
		if err == nil {
			err = s.objects.Delete(ctx, key)
		}
		if err != nil {
			s.log.Warn("meeting file not removed from storage",
				zap.Uint("id", m.ID),
				zap.String("artifact", string(artifact)),
				zap.String("url", url),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("meeting %d %s: %w", m.ID, artifact, ensureStorageKind(err)))
		}
	}
	metrics.RecordOrphanedObjects("delete", len(errs))
	return errors.Join(errs...)
}

// abandon handles objects uploaded by a create that failed afterwards. They
// stay in the bucket unless compensation is enabled.
func (s *MeetingService) abandon(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	if !s.opts.CompensateOnFailure {
		s.log.Warn("create failed, uploaded files left in storage", zap.Strings("keys", keys))
		metrics.RecordOrphanedObjects("create", len(keys))
		return
	}

	orphaned := 0
	for _, key := range keys {
		if err := s.objects.Delete(ctx, key); err != nil {
			orphaned++
			s.log.Warn("compensating delete failed", zap.String("key", key), zap.Error(err))
		}
	}
	metrics.RecordOrphanedObjects("create", orphaned)
}

func validateCreate(in CreateMeetingInput) (models.Meeting, error) {
	company := strings.TrimSpace(in.CompanyName)
	if company == "" {
		return models.Meeting{}, models.NewValidationError("company_name", "must not be empty")
	}
	name := strings.TrimSpace(in.MeetingName)
	if name == "" {
		return models.Meeting{}, models.NewValidationError("meeting_name", "must not be empty")
	}
	at, err := utils.ParseISO8601(in.MeetingDatetime)
	if err != nil {
		return models.Meeting{}, models.NewValidationError("meeting_datetime", "must be an ISO-8601 timestamp such as 2024-01-01T10:00:00Z")
	}
	if err := checkUpload("wav_file", in.Wav, audioContentTypes); err != nil {
		return models.Meeting{}, err
	}
	if err := checkUpload("summary_txt_file", in.SummaryTxt, textContentTypes); err != nil {
		return models.Meeting{}, err
	}
	if err := checkUpload("whole_meeting_txt_file", in.WholeMeetingTxt, textContentTypes); err != nil {
		return models.Meeting{}, err
	}
	return models.Meeting{
		CompanyName:     company,
		MeetingName:     name,
		MeetingDatetime: at,
	}, nil
}

func validateUpdate(in UpdateMeetingInput) (models.MeetingUpdate, error) {
	var u models.MeetingUpdate
	for _, f := range []struct {
		field, value string
		dst          **string
	}{
		{"company_name", in.CompanyName, &u.CompanyName},
		{"meeting_name", in.MeetingName, &u.MeetingName},
	} {
		if f.value == "" {
			continue
		}
		v := strings.TrimSpace(f.value)
		if v == "" {
			return u, models.NewValidationError(f.field, "must not be blank")
		}
		*f.dst = &v
	}
	if in.MeetingDatetime != "" && strings.TrimSpace(in.MeetingDatetime) == "" {
		return u, models.NewValidationError("meeting_datetime", "must not be blank")
	}
	if strings.TrimSpace(in.MeetingDatetime) != "" {
		at, err := utils.ParseISO8601(in.MeetingDatetime)
		if err != nil {
			return u, models.NewValidationError("meeting_datetime", "must be an ISO-8601 timestamp such as 2024-01-01T10:00:00Z")
		}
		u.MeetingDatetime = &at
	}
	if u.IsEmpty() {
		return u, models.NewValidationError("form", "one of company_name, meeting_name or meeting_datetime is required")
	}
	return u, nil
}

// checkUpload compares the declared media type only; parameters such as charset are ignored.
func checkUpload(field string, up Upload, accepted []string) error {
	if up.Filename == "" {
		return models.NewValidationError(field, "file is required")
	}
	mediaType, _, err := mime.ParseMediaType(up.ContentType)
	if err == nil {
		for _, want := range accepted {
			if strings.EqualFold(mediaType, want) {
				return nil
			}
		}
	}
	return models.NewValidationError(field, fmt.Sprintf("content type %q is not accepted, expected %s", up.ContentType, strings.Join(accepted, " or ")))
}

func ensureKind(kind, err error) error {
	if err == nil || errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

func ensureStorageKind(err error) error {
	if errors.Is(err, models.ErrMalformedURL) {
		return err
	}
	return ensureKind(models.ErrStorageUnavailable, err)
}

func outcome(err error, found bool) string {
	switch {
	case errors.Is(err, models.ErrValidation):
		return metrics.ResultInvalid
	case err != nil:
		return metrics.ResultFailure
	case !found:
		return metrics.ResultNotFound
	default:
		return metrics.ResultSuccess
	}
}
