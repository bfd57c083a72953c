package store

// Collection key kinds. Auto collections use SQLite rowid assignment and
// backfill the generated id into the JSON record; string collections carry
// caller-assigned ids.
type keyKind int

const (
	keyAuto keyKind = iota
	keyString
)

type indexDef struct {
	Name   string
	Field  string
	Unique bool
}

type collectionDef struct {
	Name string
	Key  keyKind
	// Version is the schema version that introduced the collection.
	Indexes []indexDef
	Version int
}

// Schema history. Version 1 is the core collections; version 2 adds the
// templates collection. Upgrades are additive only.
var collectionDefs = []collectionDef{
	{Name: "tasks", Key: keyAuto, Version: 1, Indexes: []indexDef{
		{Name: "timestamp", Field: "timestamp"},
		{Name: "status", Field: "status"},
	}},
	{Name: "routines", Key: keyString, Version: 1, Indexes: []indexDef{
		{Name: "timestamp", Field: "timestamp"},
	}},
	{Name: "habits", Key: keyAuto, Version: 1, Indexes: []indexDef{
		{Name: "timestamp", Field: "timestamp"},
		{Name: "paused", Field: "paused"},
	}},
	{Name: "dumps", Key: keyAuto, Version: 1, Indexes: []indexDef{
		{Name: "timestamp", Field: "timestamp"},
	}},
	{Name: "schedule", Key: keyAuto, Version: 1, Indexes: []indexDef{
		{Name: "day", Field: "day"},
		{Name: "timestamp", Field: "timestamp"},
	}},
	{Name: "stats", Key: keyAuto, Version: 1, Indexes: []indexDef{
		{Name: "type", Field: "type"},
		{Name: "date", Field: "date"},
		{Name: "timestamp", Field: "timestamp"},
	}},
	{Name: "file_refs", Key: keyAuto, Version: 1, Indexes: []indexDef{
		{Name: "file_name", Field: "fileName", Unique: true},
		{Name: "parent_type", Field: "parentType"},
		{Name: "parent_id", Field: "parentId"},
		{Name: "timestamp", Field: "timestamp"},
	}},
	{Name: "backups", Key: keyAuto, Version: 1, Indexes: []indexDef{
		{Name: "timestamp", Field: "timestamp"},
	}},
	{Name: "templates", Key: keyString, Version: 2, Indexes: []indexDef{
		{Name: "type", Field: "type"},
		{Name: "title", Field: "title"},
		{Name: "created_at", Field: "createdAt"},
		{Name: "last_used", Field: "lastUsed"},
	}},
}

// Collections returns the names of all known collections in schema order.
func Collections() []string {
	names := make([]string, 0, len(collectionDefs))
	for _, def := range collectionDefs {
		names = append(names, def.Name)
	}
	return names
}

func defFor(name string) (collectionDef, bool) {
	for _, def := range collectionDefs {
		if def.Name == name {
			return def, true
		}
	}
	return collectionDef{}, false
}
