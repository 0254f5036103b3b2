package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/asukhodko/dify-markdown-chunker-sub002/internal/database"
	"github.com/asukhodko/dify-markdown-chunker-sub002/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) (*gorm.DB, func()) {
	// 使用唯一的内存数据库标识符
	dbName := fmt.Sprintf("file:memdb_%d?mode=memory", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err, "Failed to open in-memory database")

	// 运行迁移以创建所需的表
	err = db.AutoMigrate(&models.Document{}, &models.ChunkRecord{}, &models.DocumentTask{})
	require.NoError(t, err, "Failed to run migrations")

	// 保存原始全局DB引用
	originalDB := database.DB
	database.DB = db

	cleanup := func() {
		database.DB = originalDB
	}

	return db, cleanup
}

func newTestDocument(id string) *models.Document {
	return &models.Document{
		ID:        id,
		FileName:  "guide.md",
		FilePath:  "/path/to/guide.md",
		FileSize:  2048,
		Status:    models.DocStatusUploaded,
		Tags:      "test,markdown",
		Progress:  0,
		UpdatedAt: time.Now(),
	}
}

func TestDocumentRepository_Create(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()

	doc := newTestDocument("test-doc-1")
	err := repo.Create(doc)
	assert.NoError(t, err, "Document creation should succeed")

	// 验证文档已创建
	savedDoc, err := repo.GetByID(doc.ID)
	assert.NoError(t, err, "Should be able to retrieve created document")
	assert.Equal(t, doc.ID, savedDoc.ID, "Document ID should match")
	assert.Equal(t, doc.FileName, savedDoc.FileName, "Document filename should match")
	assert.Equal(t, doc.Status, savedDoc.Status, "Document status should match")
}

func TestDocumentRepository_CreateWithoutID(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()

	doc := newTestDocument("")
	err := repo.Create(doc)
	assert.Error(t, err, "Creating a document without ID should fail")
}

func TestDocumentRepository_UpdateStatus(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()

	doc := newTestDocument("test-doc-2")
	require.NoError(t, repo.Create(doc))

	// 更新为处理中
	err := repo.UpdateStatus(doc.ID, models.DocStatusProcessing, "")
	assert.NoError(t, err, "Status update should succeed")

	savedDoc, err := repo.GetByID(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusProcessing, savedDoc.Status, "Status should be processing")
	assert.Nil(t, savedDoc.ProcessedAt, "ProcessedAt should not be set while processing")

	// 更新为失败并记录错误
	err = repo.UpdateStatus(doc.ID, models.DocStatusFailed, "chunking failed")
	assert.NoError(t, err)

	savedDoc, err = repo.GetByID(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusFailed, savedDoc.Status, "Status should be failed")
	assert.Equal(t, "chunking failed", savedDoc.Error, "Error message should be recorded")
	assert.NotNil(t, savedDoc.ProcessedAt, "ProcessedAt should be set on terminal status")
}

func TestDocumentRepository_GetByIDNotFound(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()

	_, err := repo.GetByID("no-such-doc")
	assert.Error(t, err, "Getting a missing document should fail")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound, "Error should wrap ErrDocumentNotFound")
}

func TestDocumentRepository_List(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()

	for i := 1; i <= 5; i++ {
		doc := newTestDocument(fmt.Sprintf("list-doc-%d", i))
		doc.UploadedAt = time.Now().Add(-time.Duration(i) * time.Minute)
		if i%2 == 0 {
			doc.Status = models.DocStatusCompleted
			doc.Strategy = "structural"
		}
		require.NoError(t, repo.Create(doc))
	}

	// 无过滤列表
	docs, total, err := repo.List(0, 10, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), total, "Total count should match")
	assert.Len(t, docs, 5, "All documents should be returned")

	// 状态过滤
	docs, total, err = repo.List(0, 10, map[string]interface{}{
		"status": models.DocStatusCompleted,
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(2), total, "Completed document count should match")

	// 策略过滤
	docs, total, err = repo.List(0, 10, map[string]interface{}{
		"strategy": "structural",
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(2), total, "Strategy filter should match completed docs")

	// 分页
	docs, total, err = repo.List(0, 2, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), total, "Total should ignore pagination")
	assert.Len(t, docs, 2, "Page size should be respected")
}

func TestDocumentRepository_SaveAndGetChunks(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()

	doc := newTestDocument("chunk-doc-1")
	require.NoError(t, repo.Create(doc))

	chunks := []*models.ChunkRecord{
		{
			DocumentID:  doc.ID,
			Position:    0,
			Content:     "# Introduction\n\nSome text.",
			StartLine:   1,
			EndLine:     3,
			Size:        27,
			Strategy:    "structural",
			SectionPath: "Introduction",
		},
		{
			DocumentID:  doc.ID,
			Position:    1,
			Content:     "## Usage\n\nMore text.",
			StartLine:   4,
			EndLine:     6,
			Size:        20,
			Strategy:    "structural",
			SectionPath: "Introduction > Usage",
		},
	}

	err := repo.SaveChunks(chunks)
	assert.NoError(t, err, "Batch chunk save should succeed")

	// 验证读取顺序和数量
	saved, err := repo.GetChunks(doc.ID)
	assert.NoError(t, err)
	require.Len(t, saved, 2, "Both chunks should be returned")
	assert.Equal(t, 0, saved[0].Position, "Chunks should be ordered by position")
	assert.Equal(t, "Introduction > Usage", saved[1].SectionPath, "Section path should be preserved")

	count, err := repo.CountChunks(doc.ID)
	assert.NoError(t, err)
	assert.Equal(t, 2, count, "Chunk count should match")
}

func TestDocumentRepository_GetChunkByID(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()

	doc := newTestDocument("chunk-doc-2")
	require.NoError(t, repo.Create(doc))

	require.NoError(t, repo.SaveChunk(&models.ChunkRecord{
		DocumentID: doc.ID,
		ChunkID:    "a1b2c3d4e5f6",
		Position:   0,
		Content:    "Some chunk content.",
		StartLine:  1,
		EndLine:    1,
		Size:       19,
	}))

	chunk, err := repo.GetChunkByID(doc.ID, "a1b2c3d4e5f6")
	assert.NoError(t, err)
	assert.Equal(t, "Some chunk content.", chunk.Content, "Chunk content should match")

	_, err = repo.GetChunkByID(doc.ID, "missing")
	assert.ErrorIs(t, err, models.ErrChunkNotFound, "Missing chunk should return ErrChunkNotFound")
}

func TestDocumentRepository_DeleteRemovesChunks(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()

	doc := newTestDocument("delete-doc-1")
	require.NoError(t, repo.Create(doc))
	require.NoError(t, repo.SaveChunk(&models.ChunkRecord{
		DocumentID: doc.ID,
		Position:   0,
		Content:    "content",
		StartLine:  1,
		EndLine:    1,
		Size:       7,
	}))

	err := repo.Delete(doc.ID)
	assert.NoError(t, err, "Document deletion should succeed")

	_, err = repo.GetByID(doc.ID)
	assert.Error(t, err, "Deleted document should not be found")

	count, err := repo.CountChunks(doc.ID)
	assert.NoError(t, err)
	assert.Equal(t, 0, count, "Chunks should be deleted with the document")
}

func TestDocumentRepository_UpdateProgress(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()

	doc := newTestDocument("progress-doc-1")
	require.NoError(t, repo.Create(doc))

	// 超出范围的进度会被裁剪
	require.NoError(t, repo.UpdateProgress(doc.ID, 150))
	savedDoc, err := repo.GetByID(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, savedDoc.Progress, "Progress should be clamped to 100")

	require.NoError(t, repo.UpdateProgress(doc.ID, -10))
	savedDoc, err = repo.GetByID(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, savedDoc.Progress, "Progress should be clamped to 0")
}
