package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"telecom-project/tasks-service/logging"

	"github.com/google/uuid"
)

// UploadedFile is one file received in a multipart request, decoupled from
// net/http so services can be exercised without a real request.
type UploadedFile struct {
	Name   string
	Reader io.Reader
}

// FileService writes order files and attachments below the public uploads
// directory and returns the relative URLs stored on task documents.
type FileService struct {
	UploadsDir string
}

func NewFileService(uploadsDir string) *FileService {
	if uploadsDir == "" {
		uploadsDir = filepath.Join("public", "uploads")
	}
	return &FileService{UploadsDir: uploadsDir}
}

// SaveOrderFile stores the order spreadsheet of a task under
// <uploads>/taskattach/<folder>/order/ and returns its URL.
func (fs *FileService) SaveOrderFile(folder string, file UploadedFile) (string, error) {
	orderDir := filepath.Join(fs.UploadsDir, "taskattach", folder, "order")
	if err := os.MkdirAll(orderDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create order directory: %v", err)
	}

	fileName := fmt.Sprintf("order_%d%s", time.Now().UnixMilli(), filepath.Ext(file.Name))
	if err := fs.writeFile(filepath.Join(orderDir, fileName), file.Reader); err != nil {
		return "", err
	}

	return "/uploads/taskattach/" + folder + "/order/" + fileName, nil
}

// SaveTaskAttachments stores creation-time attachments under
// <uploads>/taskattach/<folder>/. Names carry a timestamp plus the index
// within the request to avoid collisions between files of one submission.
func (fs *FileService) SaveTaskAttachments(folder string, files []UploadedFile) ([]string, error) {
	if len(files) == 0 {
		return []string{}, nil
	}

	attachmentsDir := filepath.Join(fs.UploadsDir, "taskattach", folder)
	if err := os.MkdirAll(attachmentsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create attachments directory: %v", err)
	}

	urls := make([]string, 0, len(files))
	for i, file := range files {
		fileName := fmt.Sprintf("attachment_%d_%d%s", time.Now().UnixMilli(), i, filepath.Ext(file.Name))
		if err := fs.writeFile(filepath.Join(attachmentsDir, fileName), file.Reader); err != nil {
			return nil, err
		}
		urls = append(urls, "/uploads/taskattach/"+folder+"/"+fileName)
	}

	return urls, nil
}

// SaveUpdateAttachment stores a file uploaded through a task update directly
// under the uploads root, prefixed with a fresh UUID.
func (fs *FileService) SaveUpdateAttachment(file UploadedFile) (string, error) {
	if err := os.MkdirAll(fs.UploadsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create uploads directory: %v", err)
	}

	fileName := uuid.New().String() + "-" + filepath.Base(file.Name)
	if err := fs.writeFile(filepath.Join(fs.UploadsDir, fileName), file.Reader); err != nil {
		return "", err
	}

	return "/uploads/" + fileName, nil
}

func (fs *FileService) writeFile(path string, r io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %v", path, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("failed to write file %s: %v", path, err)
	}

	logging.Logger.Infof("Event ID: FILE_SAVED, Description: Stored uploaded file at %s", path)
	return nil
}
