package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rohits-web03/meetingvault/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockObjectStore struct {
	mock.Mock
}

func (m *mockObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, key, data, contentType)
	return args.String(0), args.Error(1)
}

func (m *mockObjectStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockObjectStore) KeyFromURL(url string) (string, error) {
	args := m.Called(url)
	return args.String(0), args.Error(1)
}

func (m *mockObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockObjectStore) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	args := m.Called(ctx, key, expires)
	return args.String(0), args.Error(1)
}

type mockMeetingStore struct {
	mock.Mock
}

func (m *mockMeetingStore) Insert(ctx context.Context, meeting *models.Meeting) error {
	return m.Called(ctx, meeting).Error(0)
}

func (m *mockMeetingStore) Get(ctx context.Context, id uint) (models.Meeting, bool, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Meeting), args.Bool(1), args.Error(2)
}

func (m *mockMeetingStore) List(ctx context.Context) ([]models.Meeting, error) {
	args := m.Called(ctx)
	meetings, _ := args.Get(0).([]models.Meeting)
	return meetings, args.Error(1)
}

func (m *mockMeetingStore) Update(ctx context.Context, id uint, u models.MeetingUpdate) (models.Meeting, bool, error) {
	args := m.Called(ctx, id, u)
	return args.Get(0).(models.Meeting), args.Bool(1), args.Error(2)
}

func (m *mockMeetingStore) Delete(ctx context.Context, id uint) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockMeetingStore) DeleteAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockMeetingStore) ResetIDSequence(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestCreateInvalidContentTypeCallsNoCollaborator(t *testing.T) {
	objects := new(mockObjectStore)
	store := new(mockMeetingStore)
	svc := NewMeetingService(objects, store, zap.NewNop(), Options{})

	in := standupInput()
	in.SummaryTxt.ContentType = "image/png"

	_, err := svc.Create(context.Background(), in)
	require.ErrorIs(t, err, models.ErrValidation)

	objects.AssertNumberOfCalls(t, "Put", 0)
	store.AssertNumberOfCalls(t, "Insert", 0)
	objects.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestCreateMalformedDatetimeCallsNoCollaborator(t *testing.T) {
	objects := new(mockObjectStore)
	store := new(mockMeetingStore)
	svc := NewMeetingService(objects, store, zap.NewNop(), Options{})

	in := standupInput()
	in.MeetingDatetime = "2024-01-01T10:00:00 KST"

	_, err := svc.Create(context.Background(), in)
	require.ErrorIs(t, err, models.ErrValidation)

	objects.AssertNumberOfCalls(t, "Put", 0)
	store.AssertNumberOfCalls(t, "Insert", 0)
}

func TestCreateInsertFailureOrphansAllUploads(t *testing.T) {
	objects := new(mockObjectStore)
	store := new(mockMeetingStore)
	svc := NewMeetingService(objects, store, zap.NewNop(), Options{})

	objects.On("Put", mock.Anything, "wav_files/standup.wav", mock.Anything, "audio/wav").Return("u1", nil).Once()
	objects.On("Put", mock.Anything, "txt_files/summary_standup.txt", mock.Anything, "text/plain").Return("u2", nil).Once()
	objects.On("Put", mock.Anything, "txt_files/whole_standup.txt", mock.Anything, "text/plain").Return("u3", nil).Once()
	store.On("Insert", mock.Anything, mock.AnythingOfType("*models.Meeting")).Return(errors.New("Error 1040: Too many connections")).Once()

	_, err := svc.Create(context.Background(), standupInput())
	require.ErrorIs(t, err, models.ErrPersistence)

	objects.AssertExpectations(t)
	store.AssertExpectations(t)
	objects.AssertNumberOfCalls(t, "Delete", 0)
}

func TestCreateUploadsInOrder(t *testing.T) {
	objects := new(mockObjectStore)
	store := new(mockMeetingStore)
	svc := NewMeetingService(objects, store, zap.NewNop(), Options{})

	var order []string
	objects.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { order = append(order, args.String(1)) }).
		Return("u", nil)
	store.On("Insert", mock.Anything, mock.Anything).Return(nil)

	_, err := svc.Create(context.Background(), standupInput())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"wav_files/standup.wav",
		"txt_files/summary_standup.txt",
		"txt_files/whole_standup.txt",
	}, order)
}

func TestDeleteOrderAndSequenceReset(t *testing.T) {
	objects := new(mockObjectStore)
	store := new(mockMeetingStore)
	svc := NewMeetingService(objects, store, zap.NewNop(), Options{})

	m := models.Meeting{ID: 7, WavURL: "w", SummaryTxtURL: "s", WholeMeetingTxtURL: "t"}
	store.On("Get", mock.Anything, uint(7)).Return(m, true, nil)
	var order []string
	for url, key := range map[string]string{"w": "wav", "s": "summary", "t": "whole"} {
		objects.On("KeyFromURL", url).Return(key, nil)
	}
	objects.On("Delete", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { order = append(order, args.String(1)) }).
		Return(nil)
	store.On("Delete", mock.Anything, uint(7)).Return(true, nil)
	store.On("ResetIDSequence", mock.Anything).Return(nil).Once()

	deleted, err := svc.Delete(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, []string{"wav", "summary", "whole"}, order)
	store.AssertExpectations(t)
}

func TestDeleteNotFoundTouchesNothing(t *testing.T) {
	objects := new(mockObjectStore)
	store := new(mockMeetingStore)
	svc := NewMeetingService(objects, store, zap.NewNop(), Options{})

	store.On("Get", mock.Anything, uint(3)).Return(models.Meeting{}, false, nil)

	deleted, err := svc.Delete(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, deleted)
	objects.AssertNumberOfCalls(t, "Delete", 0)
	store.AssertNumberOfCalls(t, "Delete", 0)
	store.AssertNumberOfCalls(t, "ResetIDSequence", 0)
}

func TestListNeverReturnsNil(t *testing.T) {
	store := new(mockMeetingStore)
	svc := NewMeetingService(new(mockObjectStore), store, zap.NewNop(), Options{})

	store.On("List", mock.Anything).Return(nil, nil)

	meetings, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, meetings)
	assert.Empty(t, meetings)
}
