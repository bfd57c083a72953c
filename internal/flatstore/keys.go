package flatstore

// Legacy keys carried over from the browser build. The migration engine and
// the brain dump aggregate read and write these verbatim.
const (
	// KeyAggregate is the whole-app aggregate blob (tasks, sequences,
	// habits, dumps, schedule).
	KeyAggregate = "aurorae_haven_data"
	// KeyScheduleEvents is the standalone schedule events blob.
	KeyScheduleEvents = "sj.schedule.events"
	// KeyTaskMatrix is the quadrant task matrix.
	KeyTaskMatrix = "aurorae_tasks"

	// Brain dump keys.
	KeyBrainDumpContent  = "brainDumpContent"
	KeyBrainDumpTags     = "brainDumpTags"
	KeyBrainDumpVersions = "brainDumpVersions"
	KeyBrainDumpEntries  = "brainDumpEntries"
)
