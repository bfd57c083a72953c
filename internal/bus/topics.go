package bus

// Topic constants for store and backup events.
const (
	// TopicRecordPut is published after a record is created or replaced.
	TopicRecordPut = "store.record_put"
	// TopicRecordDeleted is published after a record is deleted.
	TopicRecordDeleted = "store.record_deleted"
	// TopicCollectionCleared is published after a collection is emptied.
	TopicCollectionCleared = "store.collection_cleared"
	// TopicBackupCreated is published after a backup snapshot is stored.
	TopicBackupCreated = "backup.created"
)

// RecordEvent is the payload for record put/delete events.
type RecordEvent struct {
	Collection string
	Key        string
}

// CollectionEvent is the payload for collection-level events.
type CollectionEvent struct {
	Collection string
}

// BackupEvent is the payload for backup.created.
type BackupEvent struct {
	BackupID string
	Size     int
}
