package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/huangang/deployguide/internal/services"
	"github.com/huangang/deployguide/pkg/response"
)

const createdAtLayout = "2006-01-02 15:04:05"

// ArtifactStore is the inventory side of the output directory.
type ArtifactStore interface {
	List() ([]services.GeneratedArtifact, error)
	Get(filename string) (*services.GeneratedArtifact, error)
	Delete(filename string) error
	DeleteAll() (int, error)
}

type OutputFile struct {
	Filename  string `json:"filename"`
	Platform  string `json:"platform"`
	CreatedAt string `json:"created_at"`
	FilePath  string `json:"file_path"`
}

type OutputFileDetail struct {
	OutputFile
	Content string `json:"content"`
}

type DeleteAllResponse struct {
	Message string `json:"message"`
	Deleted int    `json:"deleted"`
}

type ArtifactHandler struct {
	store ArtifactStore
}

func NewArtifactHandler(store ArtifactStore) *ArtifactHandler {
	return &ArtifactHandler{store: store}
}

func toOutputFile(a services.GeneratedArtifact) OutputFile {
	return OutputFile{
		Filename:  a.Filename,
		Platform:  a.Platform,
		CreatedAt: a.CreatedAt.Format(createdAtLayout),
		FilePath:  a.FilePath,
	}
}

// List handles GET /output_files.
func (h *ArtifactHandler) List(c *gin.Context) {
	artifacts, err := h.store.List()
	if err != nil {
		fail(c, err)
		return
	}

	files := make([]OutputFile, 0, len(artifacts))
	for _, a := range artifacts {
		files = append(files, toOutputFile(a))
	}
	response.OK(c, files)
}

// Get handles GET /output_files/:filename.
func (h *ArtifactHandler) Get(c *gin.Context) {
	artifact, err := h.store.Get(c.Param("filename"))
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, OutputFileDetail{
		OutputFile: toOutputFile(*artifact),
		Content:    artifact.Content,
	})
}

// Delete handles DELETE /output_files/:filename.
func (h *ArtifactHandler) Delete(c *gin.Context) {
	filename := c.Param("filename")
	if err := h.store.Delete(filename); err != nil {
		fail(c, err)
		return
	}
	response.Message(c, fmt.Sprintf("File %s deleted successfully", filename))
}

// DeleteAll handles DELETE /output_files.
func (h *ArtifactHandler) DeleteAll(c *gin.Context) {
	deleted, err := h.store.DeleteAll()
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, DeleteAllResponse{Message: "All files deleted successfully", Deleted: deleted})
}
