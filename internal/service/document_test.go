package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"casedocs/internal/filetype"
	"casedocs/internal/model"
	repoMocks "casedocs/internal/repository/mocks"
	"casedocs/internal/storage"
	storeMocks "casedocs/internal/storage/mocks"
)

// compressorFunc adapts a function to the Compressor interface for tests.
type compressorFunc func(ctx context.Context, kind filetype.Kind, data []byte) ([]byte, error)

func (f compressorFunc) Compress(ctx context.Context, kind filetype.Kind, data []byte) ([]byte, error) {
	return f(ctx, kind, data)
}

var passThrough = compressorFunc(func(_ context.Context, _ filetype.Kind, data []byte) ([]byte, error) {
	return data, nil
})

const maxTestSize = 10 << 20

func newTestService(store storage.Storage, repo *repoMocks.MockDocumentRepository, c Compressor) DocumentService {
	if c == nil {
		c = passThrough
	}
	return NewDocumentService(store, repo, c, maxTestSize, zap.NewNop())
}

func docxInput(content string) UploadInput {
	return UploadInput{
		CaseID:       "41",
		UploadedBy:   "user-7",
		OriginalName: "brief.docx",
		MediaType:    "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Size:         int64(len(content)),
		Reader:       strings.NewReader(content),
	}
}

func TestDocumentService_Upload(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		input      func() UploadInput
		compressor Compressor
		setupMocks func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository)
		wantErr    error
		wantErrMsg string
	}{
		{
			name:  "happy path pass-through docx",
			input: func() UploadInput { return docxInput("docx bytes") },
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mStore.On("Put", ctx, mock.MatchedBy(func(key string) bool {
					return strings.HasPrefix(key, "cases/41/") && strings.HasSuffix(key, ".docx")
				}), mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, nil)
				mRepo.On("Create", ctx, mock.MatchedBy(func(doc *model.Document) bool {
					return doc.CaseID == "41" &&
						doc.UploadedBy == "user-7" &&
						doc.OriginalName == "brief.docx" &&
						doc.Size == int64(len("docx bytes")) &&
						!strings.Contains(doc.StoredPath, "brief")
				})).Return(&model.Document{ID: "gen-id"}, nil)
			},
		},
		{
			name: "validation - missing case id",
			input: func() UploadInput {
				in := docxInput("x")
				in.CaseID = ""
				return in
			},
			setupMocks: func(*storeMocks.MockStorage, *repoMocks.MockDocumentRepository) {},
			wantErr:    ErrCaseIDRequired,
		},
		{
			name: "validation - case id with path separator",
			input: func() UploadInput {
				in := docxInput("x")
				in.CaseID = "../41"
				return in
			},
			setupMocks: func(*storeMocks.MockStorage, *repoMocks.MockDocumentRepository) {},
			wantErr:    ErrCaseIDRequired,
		},
		{
			name: "validation - missing uploader",
			input: func() UploadInput {
				in := docxInput("x")
				in.UploadedBy = ""
				return in
			},
			setupMocks: func(*storeMocks.MockStorage, *repoMocks.MockDocumentRepository) {},
			wantErr:    ErrUploaderRequired,
		},
		{
			name: "validation - nil reader",
			input: func() UploadInput {
				in := docxInput("x")
				in.Reader = nil
				return in
			},
			setupMocks: func(*storeMocks.MockStorage, *repoMocks.MockDocumentRepository) {},
			wantErr:    ErrReaderNil,
		},
		{
			name: "validation - declared size over ceiling",
			input: func() UploadInput {
				in := docxInput("x")
				in.Size = maxTestSize + 1
				return in
			},
			setupMocks: func(*storeMocks.MockStorage, *repoMocks.MockDocumentRepository) {},
			wantErr:    ErrFileTooLarge,
		},
		{
			name: "validation - actual bytes over ceiling despite small declared size",
			input: func() UploadInput {
				in := docxInput("x")
				in.Size = 1
				in.Reader = bytes.NewReader(make([]byte, maxTestSize+1))
				return in
			},
			setupMocks: func(*storeMocks.MockStorage, *repoMocks.MockDocumentRepository) {},
			wantErr:    ErrFileTooLarge,
		},
		{
			name: "validation - disallowed type rejected before any write",
			input: func() UploadInput {
				in := docxInput("x")
				in.MediaType = "application/x-sh"
				return in
			},
			setupMocks: func(*storeMocks.MockStorage, *repoMocks.MockDocumentRepository) {},
			wantErr:    ErrUnsupportedType,
		},
		{
			name:  "compression failure aborts ingestion",
			input: func() UploadInput { return docxInput("x") },
			compressor: compressorFunc(func(context.Context, filetype.Kind, []byte) ([]byte, error) {
				return nil, errors.New("optimizer exploded")
			}),
			setupMocks: func(*storeMocks.MockStorage, *repoMocks.MockDocumentRepository) {},
			wantErrMsg: "optimizer exploded",
		},
		{
			name:  "storage error",
			input: func() UploadInput { return docxInput("x") },
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{}, errors.New("storage fail"))
			},
			wantErrMsg: "upload to storage: storage fail",
		},
		{
			name:  "repository error with successful rollback",
			input: func() UploadInput { return docxInput("x") },
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{}, nil)
				mRepo.On("Create", ctx, mock.Anything).Return(nil, errors.New("db fail"))
				mStore.On("Delete", ctx, mock.Anything).Return(nil)
			},
			wantErrMsg: "db save failed: db fail",
		},
		{
			name:  "repository error with failed rollback",
			input: func() UploadInput { return docxInput("x") },
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{}, nil)
				mRepo.On("Create", ctx, mock.Anything).Return(nil, errors.New("db fail"))
				mStore.On("Delete", ctx, mock.Anything).Return(errors.New("delete fail"))
			},
			wantErrMsg: "rollback delete failed: delete fail",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			mRepo := new(repoMocks.MockDocumentRepository)
			svc := newTestService(mStore, mRepo, tt.compressor)

			tt.setupMocks(mStore, mRepo)

			doc, err := svc.Upload(ctx, tt.input())

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else if tt.wantErrMsg != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, doc)
			}

			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}

func TestDocumentService_UploadNeverStoresOversized(t *testing.T) {
	// A tight ceiling exercises the bound independently of the default.
	mStore := new(storeMocks.MockStorage)
	mRepo := new(repoMocks.MockDocumentRepository)
	svc := NewDocumentService(mStore, mRepo, passThrough, 16, zap.NewNop())

	in := docxInput(strings.Repeat("a", 17))
	_, err := svc.Upload(context.Background(), in)
	assert.ErrorIs(t, err, ErrFileTooLarge)
	mStore.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDocumentService_ListByCase(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		mRepo := new(repoMocks.MockDocumentRepository)
		mRepo.On("ListByCase", ctx, "41").Return([]model.Document{{ID: "1"}, {ID: "2"}}, nil)
		svc := newTestService(nil, mRepo, nil)

		docs, err := svc.ListByCase(ctx, "41")

		assert.NoError(t, err)
		assert.Len(t, docs, 2)
		mRepo.AssertExpectations(t)
	})

	t.Run("validation - empty case id", func(t *testing.T) {
		svc := newTestService(nil, new(repoMocks.MockDocumentRepository), nil)
		_, err := svc.ListByCase(ctx, "")
		assert.ErrorIs(t, err, ErrCaseIDRequired)
	})

	t.Run("repository error", func(t *testing.T) {
		mRepo := new(repoMocks.MockDocumentRepository)
		mRepo.On("ListByCase", ctx, "41").Return(nil, errors.New("db fail"))
		svc := newTestService(nil, mRepo, nil)

		_, err := svc.ListByCase(ctx, "41")
		assert.Error(t, err)
	})
}

func TestDocumentService_Delete(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		id         string
		setupMocks func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository)
		wantErr    error
	}{
		{
			name: "happy path",
			id:   "valid-id",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, "valid-id").Return(&model.Document{ID: "valid-id", StoredPath: "cases/41/obj.pdf"}, nil)
				mStore.On("Stat", ctx, "cases/41/obj.pdf").Return(storage.ObjectInfo{Key: "cases/41/obj.pdf"}, nil)
				mStore.On("Delete", ctx, "cases/41/obj.pdf").Return(nil)
				mRepo.On("Delete", ctx, "valid-id").Return(nil)
			},
		},
		{
			name:       "validation - empty id",
			id:         "",
			setupMocks: func(*storeMocks.MockStorage, *repoMocks.MockDocumentRepository) {},
			wantErr:    ErrIDRequired,
		},
		{
			name: "not found is idempotent",
			id:   "missing-id",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, "missing-id").Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "artifact already missing still removes row",
			id:   "ghost-artifact",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, "ghost-artifact").Return(&model.Document{ID: "ghost-artifact", StoredPath: "cases/41/gone.pdf"}, nil)
				mStore.On("Stat", ctx, "cases/41/gone.pdf").
					Return(storage.ObjectInfo{}, fmt.Errorf("%w: cases/41/gone.pdf", storage.ErrNotExist))
				mRepo.On("Delete", ctx, "ghost-artifact").Return(nil)
			},
		},
		{
			name: "storage stat error keeps row",
			id:   "stat-fail-id",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, "stat-fail-id").Return(&model.Document{ID: "id", StoredPath: "p"}, nil)
				mStore.On("Stat", ctx, "p").Return(storage.ObjectInfo{}, errors.New("storage fail"))
			},
			wantErr: errors.New("stat storage: storage fail"),
		},
		{
			name: "storage delete error keeps row",
			id:   "storage-fail-id",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, "storage-fail-id").Return(&model.Document{ID: "id", StoredPath: "p"}, nil)
				mStore.On("Stat", ctx, "p").Return(storage.ObjectInfo{Key: "p"}, nil)
				mStore.On("Delete", ctx, "p").Return(errors.New("storage fail"))
			},
			wantErr: errors.New("delete storage: storage fail"),
		},
		{
			name: "row deleted by concurrent request",
			id:   "raced-id",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, "raced-id").Return(&model.Document{ID: "raced-id", StoredPath: "p"}, nil)
				mStore.On("Stat", ctx, "p").Return(storage.ObjectInfo{Key: "p"}, nil)
				mStore.On("Delete", ctx, "p").Return(nil)
				mRepo.On("Delete", ctx, "raced-id").Return(sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			mRepo := new(repoMocks.MockDocumentRepository)
			svc := newTestService(mStore, mRepo, nil)

			tt.setupMocks(mStore, mRepo)

			err := svc.Delete(ctx, tt.id)

			if tt.wantErr != nil {
				if errors.Is(tt.wantErr, ErrIDRequired) || errors.Is(tt.wantErr, ErrNotFound) {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.Error(t, err)
					assert.Contains(t, err.Error(), tt.wantErr.Error())
				}
			} else {
				assert.NoError(t, err)
			}
			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}
