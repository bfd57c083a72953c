package store

import (
	"context"
	"fmt"
	"time"
)

// FileReference links an exported or attached file to its parent record.
// FileName is unique across the collection.
type FileReference struct {
	ID         int64  `json:"id,omitempty"`
	FileName   string `json:"fileName"`
	ParentType string `json:"parentType,omitempty"`
	ParentID   string `json:"parentId,omitempty"`
	Size       int64  `json:"size,omitempty"`
	MimeType   string `json:"mimeType,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// AddFileReference stores a file reference, stamping the timestamp.
func (s *Store) AddFileReference(ctx context.Context, ref FileReference) (string, error) {
	if ref.FileName == "" {
		return "", fmt.Errorf("add file reference: missing fileName")
	}
	ref.Timestamp = time.Now().UnixMilli()

	record, err := recordFrom(ref)
	if err != nil {
		return "", fmt.Errorf("encode file reference: %w", err)
	}
	if ref.ID == 0 {
		delete(record, "id")
	}
	return s.Put(ctx, "file_refs", record)
}

// FileReferences returns the references attached to the given parent.
func (s *Store) FileReferences(ctx context.Context, parentType, parentID string) ([]FileReference, error) {
	records, err := s.GetByIndex(ctx, "file_refs", "parentType", parentType)
	if err != nil {
		return nil, err
	}
	var refs []FileReference
	for _, record := range records {
		var ref FileReference
		if err := recordInto(record, &ref); err != nil {
			return nil, fmt.Errorf("decode file reference: %w", err)
		}
		if ref.ParentID == parentID {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// DeleteFileReference removes the reference with the given file name.
// Absent names are not an error.
func (s *Store) DeleteFileReference(ctx context.Context, fileName string) error {
	records, err := s.GetByIndex(ctx, "file_refs", "fileName", fileName)
	if err != nil {
		return err
	}
	for _, record := range records {
		id, ok := numericID(record["id"])
		if !ok {
			continue
		}
		if err := s.DeleteByID(ctx, "file_refs", fmt.Sprintf("%d", id)); err != nil {
			return err
		}
	}
	return nil
}
