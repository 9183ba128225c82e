package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rohits-web03/meetingvault/internal/config"
	"github.com/rohits-web03/meetingvault/internal/models"
	"github.com/rohits-web03/meetingvault/internal/repositories"
	"github.com/rohits-web03/meetingvault/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	svc     *MeetingService
	s3      *testutil.MemoryS3
	objects *repositories.ObjectStore
	repo    *repositories.MeetingRepository
}

func newFixture(t *testing.T, opts Options) fixture {
	t.Helper()

	fake := testutil.NewMemoryS3()
	objects := repositories.NewObjectStore(fake, fake, config.S3Config{BucketName: "minutes", Region: "ap-northeast-2"})
	repo := repositories.NewMeetingRepository(testutil.OpenDB(t))
	return fixture{
		svc:     NewMeetingService(objects, repo, zap.NewNop(), opts),
		s3:      fake,
		objects: objects,
		repo:    repo,
	}
}

func standupInput() CreateMeetingInput {
	return CreateMeetingInput{
		CompanyName:     "Acme",
		MeetingName:     "Standup",
		MeetingDatetime: "2024-01-01T10:00:00Z",
		Wav:             Upload{Filename: "standup.wav", ContentType: "audio/wav", Data: []byte("0123456789")},
		SummaryTxt:      Upload{Filename: "standup.txt", ContentType: "text/plain", Data: []byte("short")},
		WholeMeetingTxt: Upload{Filename: "standup.txt", ContentType: "text/plain", Data: []byte("whole")},
	}
}

func inputNamed(name string) CreateMeetingInput {
	in := standupInput()
	in.MeetingName = name
	in.Wav.Filename = name + ".wav"
	in.SummaryTxt.Filename = name + ".txt"
	in.WholeMeetingTxt.Filename = name + ".txt"
	return in
}

func TestCreateStoresFilesAndRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	m, err := f.svc.Create(ctx, standupInput())
	require.NoError(t, err)
	assert.Equal(t, uint(1), m.ID)
	assert.Equal(t, "https://minutes.s3.ap-northeast-2.amazonaws.com/wav_files/standup.wav", m.WavURL)
	assert.Equal(t, "https://minutes.s3.ap-northeast-2.amazonaws.com/txt_files/summary_standup.txt", m.SummaryTxtURL)
	assert.Equal(t, "https://minutes.s3.ap-northeast-2.amazonaws.com/txt_files/whole_standup.txt", m.WholeMeetingTxtURL)
	assert.True(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC).Equal(m.MeetingDatetime))

	want := map[string]string{
		m.WavURL:             "0123456789",
		m.SummaryTxtURL:      "short",
		m.WholeMeetingTxtURL: "whole",
	}
	for url, content := range want {
		key, err := f.objects.KeyFromURL(url)
		require.NoError(t, err)
		data, found, err := f.objects.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, found, key)
		assert.Equal(t, content, string(data))
	}

	got, found, err := f.svc.Get(ctx, m.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, m.WavURL, got.WavURL)
	assert.Equal(t, "Acme", got.CompanyName)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func TestCreateRejectsInvalidInputWithoutSideEffects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateMeetingInput)
		field  string
	}{
		{"blank company", func(in *CreateMeetingInput) { in.CompanyName = "  " }, "company_name"},
		{"blank meeting", func(in *CreateMeetingInput) { in.MeetingName = "" }, "meeting_name"},
		{"bad datetime", func(in *CreateMeetingInput) { in.MeetingDatetime = "01/01/2024 10am" }, "meeting_datetime"},
		{"mp3 audio", func(in *CreateMeetingInput) { in.Wav.ContentType = "audio/mpeg" }, "wav_file"},
		{"missing audio", func(in *CreateMeetingInput) { in.Wav = Upload{} }, "wav_file"},
		{"pdf summary", func(in *CreateMeetingInput) { in.SummaryTxt.ContentType = "application/pdf" }, "summary_txt_file"},
		{"markdown transcript", func(in *CreateMeetingInput) { in.WholeMeetingTxt.ContentType = "text/markdown" }, "whole_meeting_txt_file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			in := standupInput()
			tt.mutate(&in)

			_, err := f.svc.Create(context.Background(), in)
			require.ErrorIs(t, err, models.ErrValidation)
			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)

			assert.Equal(t, 0, f.s3.TotalCalls())
			all, err := f.repo.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestCreateAcceptsContentTypeParameters(t *testing.T) {
	f := newFixture(t, Options{})
	in := standupInput()
	in.Wav.ContentType = "audio/x-wav"
	in.SummaryTxt.ContentType = "text/plain; charset=utf-8"

	_, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)
}

func TestCreateUploadFailureLeavesEarlierUploads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	f.s3.FailKeys["PutObject txt_files/whole_standup.txt"] = errors.New("RequestTimeout")

	_, err := f.svc.Create(ctx, standupInput())
	require.ErrorIs(t, err, models.ErrStorageUnavailable)

	_, ok := f.s3.Object("wav_files/standup.wav")
	assert.True(t, ok, "audio upload is not rolled back")
	_, ok = f.s3.Object("txt_files/summary_standup.txt")
	assert.True(t, ok, "summary upload is not rolled back")
	assert.Equal(t, 0, f.s3.Calls("DeleteObject"))

	all, err := f.repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateUploadFailureCompensates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{CompensateOnFailure: true})
	f.s3.FailKeys["PutObject txt_files/whole_standup.txt"] = errors.New("RequestTimeout")

	_, err := f.svc.Create(ctx, standupInput())
	require.ErrorIs(t, err, models.ErrStorageUnavailable)
	assert.Equal(t, 0, f.s3.Len())
	assert.Equal(t, 2, f.s3.Calls("DeleteObject"))
}

func TestUpdateChangesOnlyMetadata(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	created, err := f.svc.Create(ctx, standupInput())
	require.NoError(t, err)

	updated, found, err := f.svc.Update(ctx, created.ID, UpdateMeetingInput{CompanyName: "Acme Corp"})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Acme Corp", updated.CompanyName)
	assert.Equal(t, created.MeetingName, updated.MeetingName)
	assert.True(t, created.MeetingDatetime.Equal(updated.MeetingDatetime))
	assert.Equal(t, created.WavURL, updated.WavURL)
	assert.Equal(t, created.SummaryTxtURL, updated.SummaryTxtURL)
	assert.Equal(t, created.WholeMeetingTxtURL, updated.WholeMeetingTxtURL)

	updated, found, err = f.svc.Update(ctx, created.ID, UpdateMeetingInput{
		MeetingName:     "Retro",
		MeetingDatetime: "2024-02-01T09:30:00+09:00",
	})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Acme Corp", updated.CompanyName)
	assert.Equal(t, "Retro", updated.MeetingName)
	assert.True(t, time.Date(2024, 2, 1, 0, 30, 0, 0, time.UTC).Equal(updated.MeetingDatetime))
}

func TestUpdateValidationAndNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	_, _, err := f.svc.Update(ctx, 1, UpdateMeetingInput{})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, _, err = f.svc.Update(ctx, 1, UpdateMeetingInput{MeetingDatetime: "tomorrow"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, found, err := f.svc.Update(ctx, 1, UpdateMeetingInput{CompanyName: "Acme Corp"})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUpdateRejectsBlankFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	created, err := f.svc.Create(ctx, standupInput())
	require.NoError(t, err)

	tests := []struct {
		name  string
		in    UpdateMeetingInput
		field string
	}{
		{"blank company", UpdateMeetingInput{CompanyName: "   ", MeetingName: "Retro"}, "company_name"},
		{"blank meeting", UpdateMeetingInput{CompanyName: "Acme Corp", MeetingName: "\t"}, "meeting_name"},
		{"blank datetime", UpdateMeetingInput{CompanyName: "Acme Corp", MeetingDatetime: " "}, "meeting_datetime"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.svc.Update(ctx, created.ID, tt.in)
			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	got, _, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.CompanyName)
	assert.Equal(t, "Standup", got.MeetingName)
}

func TestDeleteRemovesObjectsRowAndRewindsIDs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	m, err := f.svc.Create(ctx, standupInput())
	require.NoError(t, err)

	deleted, err := f.svc.Delete(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, found, err := f.svc.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, f.s3.Len())
	for _, url := range []string{m.WavURL, m.SummaryTxtURL, m.WholeMeetingTxtURL} {
		key, err := f.objects.KeyFromURL(url)
		require.NoError(t, err)
		exists, err := f.objects.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, exists, key)
	}

	again, err := f.svc.Create(ctx, standupInput())
	require.NoError(t, err)
	assert.Equal(t, uint(1), again.ID)

	deleted, err = f.svc.Delete(ctx, 99)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDeleteRemovesRowWhenStorageFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	m, err := f.svc.Create(ctx, standupInput())
	require.NoError(t, err)
	f.s3.FailKeys["DeleteObject wav_files/standup.wav"] = errors.New("AccessDenied")

	deleted, err := f.svc.Delete(ctx, m.ID)
	assert.True(t, deleted)
	require.ErrorIs(t, err, models.ErrStorageUnavailable)

	_, found, err := f.svc.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, found)

	_, ok := f.s3.Object("wav_files/standup.wav")
	assert.True(t, ok, "failed object stays behind")
	_, ok = f.s3.Object("txt_files/summary_standup.txt")
	assert.False(t, ok, "later deletions still run")
	assert.Equal(t, 3, f.s3.Calls("DeleteObject"))
}

func TestDeleteMalformedURL(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	m := &models.Meeting{
		CompanyName:        "Acme",
		MeetingName:        "Legacy",
		MeetingDatetime:    time.Now().UTC(),
		WavURL:             "AWS S3 WAV URL",
		SummaryTxtURL:      f.objects.URLFor("txt_files/summary_legacy.txt"),
		WholeMeetingTxtURL: f.objects.URLFor("txt_files/whole_legacy.txt"),
	}
	require.NoError(t, f.repo.Insert(ctx, m))

	deleted, err := f.svc.Delete(ctx, m.ID)
	assert.True(t, deleted)
	require.ErrorIs(t, err, models.ErrMalformedURL)
	assert.Equal(t, 2, f.s3.Calls("DeleteObject"))
}

func TestDeleteAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{DeleteAllConcurrency: 2})

	n, err := f.svc.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	for _, name := range []string{"a", "b", "c", "d"} {
		_, err := f.svc.Create(ctx, inputNamed(name))
		require.NoError(t, err)
	}
	require.Equal(t, 12, f.s3.Len())

	n, err = f.svc.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, 0, f.s3.Len())

	all, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)

	m, err := f.svc.Create(ctx, inputNamed("e"))
	require.NoError(t, err)
	assert.Equal(t, uint(1), m.ID)
}

func TestDeleteAllContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{DeleteAllConcurrency: 1})

	for _, name := range []string{"a", "b", "c"} {
		_, err := f.svc.Create(ctx, inputNamed(name))
		require.NoError(t, err)
	}
	f.s3.FailKeys["DeleteObject wav_files/a.wav"] = errors.New("SlowDown")

	n, err := f.svc.DeleteAll(ctx)
	require.ErrorIs(t, err, models.ErrStorageUnavailable)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, 9, f.s3.Calls("DeleteObject"))
	assert.Equal(t, 1, f.s3.Len())
}

func TestDownloadURL(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	m, err := f.svc.Create(ctx, standupInput())
	require.NoError(t, err)

	url, found, err := f.svc.DownloadURL(ctx, m.ID, models.ArtifactSummary, 15*time.Minute)
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, url, "txt_files/summary_standup.txt")

	_, _, err = f.svc.DownloadURL(ctx, m.ID, models.Artifact("mp3"), time.Minute)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, found, err = f.svc.DownloadURL(ctx, 42, models.ArtifactWav, time.Minute)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDownloadURLMissingObject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	m, err := f.svc.Create(ctx, standupInput())
	require.NoError(t, err)
	require.NoError(t, f.objects.Delete(ctx, repositories.AudioKey("standup.wav")))

	_, found, err := f.svc.DownloadURL(ctx, m.ID, models.ArtifactWav, time.Minute)
	assert.True(t, found)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Zero(t, f.s3.Calls("PresignGetObject"))
}
