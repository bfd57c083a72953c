package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

func runMigrateCommand(ctx context.Context, quietLogs bool) int {
	rt, err := openRuntime(ctx, quietLogs)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	defer rt.Close(ctx)

	// Re-running migration duplicates auto-keyed records; the legacy data
	// stays in place, so warn rather than guard.
	fmt.Println("Migrating legacy data. Running this twice duplicates auto-keyed records.")

	report := rt.migrator.Run(ctx)
	for name, count := range report.Migrated {
		fmt.Printf("  %-16s %d\n", name, count)
	}
	for _, msg := range report.Errors {
		fmt.Fprintln(os.Stderr, "Error:", msg)
	}
	// The report stays successful through per-collection failures; the
	// exit code still flags them for operators.
	if len(report.Errors) > 0 {
		return 1
	}
	fmt.Println("Migration complete.")
	return 0
}

func runExportCommand(ctx context.Context, quietLogs bool, args []string) int {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dir := fs.String("dir", "", "output directory (default: configured export dir)")
	_ = fs.Parse(args)

	rt, err := openRuntime(ctx, quietLogs)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	defer rt.Close(ctx)

	outDir := *dir
	if outDir == "" {
		outDir = rt.cfg.ExportDir
	}
	path, err := rt.porter.WriteExport(ctx, outDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	fmt.Println("Exported to", path)
	return 0
}

func runImportCommand(ctx context.Context, quietLogs bool, args []string) int {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: aurorae import <file>")
		return 2
	}

	raw, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}

	rt, err := openRuntime(ctx, quietLogs)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	defer rt.Close(ctx)

	report, err := rt.porter.ImportJSON(ctx, raw)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	for name, count := range report.Imported {
		fmt.Printf("  %-16s %d\n", name, count)
	}
	for _, msg := range report.Errors {
		fmt.Fprintln(os.Stderr, "Error:", msg)
	}
	if !report.Success {
		return 1
	}
	fmt.Println("Import complete.")
	return 0
}

func runTemplateCommand(ctx context.Context, quietLogs bool, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: aurorae template <list|seed|export|import|delete|instantiate>")
		return 2
	}

	rt, err := openRuntime(ctx, quietLogs)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	defer rt.Close(ctx)

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "list":
		return templateList(ctx, rt)
	case "seed":
		return templateSeed(ctx, rt)
	case "export":
		return templateExport(ctx, rt, args[1:])
	case "import":
		return templateImport(ctx, rt, args[1:])
	case "delete":
		return templateDelete(ctx, rt, args[1:])
	case "instantiate":
		return templateInstantiate(ctx, rt, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown template action %q\n", args[0])
		return 2
	}
}

func templateList(ctx context.Context, rt *runtime) int {
	all, err := rt.templates.All(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	for _, tpl := range all {
		id, _ := tpl["id"].(string)
		typ, _ := tpl["type"].(string)
		title, _ := tpl["title"].(string)
		fmt.Printf("  %-40s %-8s %s\n", id, typ, title)
	}
	fmt.Printf("%d templates\n", len(all))
	return 0
}

func templateSeed(ctx context.Context, rt *runtime) int {
	result, err := rt.templates.SeedPredefined(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "Error: %s: %s\n", e.Template, e.Error)
	}
	fmt.Printf("Seeded %d templates, %d already present.\n", result.Added, result.Skipped)
	return 0
}

func templateExport(ctx context.Context, rt *runtime, args []string) int {
	fs := flag.NewFlagSet("template export", flag.ExitOnError)
	out := fs.String("out", "", "output file (default: stdout)")
	_ = fs.Parse(args)

	export, err := rt.templates.ExportTemplates(ctx, fs.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	serialized, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	if *out == "" {
		fmt.Println(string(serialized))
		return 0
	}
	if err := os.WriteFile(*out, serialized, 0o600); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	fmt.Println("Exported", len(export.Templates), "templates to", *out)
	return 0
}

func templateImport(ctx context.Context, rt *runtime, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: aurorae template import <file>")
		return 2
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		fmt.Fprintln(os.Stderr, "Error: invalid JSON:", err)
		return 1
	}

	result, err := rt.templates.ImportTemplates(ctx, data)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "Error: %s: %s\n", e.Template, e.Error)
	}
	fmt.Printf("Imported %d templates, skipped %d.\n", result.Imported, result.Skipped)
	return 0
}

func templateDelete(ctx context.Context, rt *runtime, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: aurorae template delete <id>")
		return 2
	}
	if err := rt.templates.Delete(ctx, args[0]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	fmt.Println("Deleted", args[0])
	return 0
}

func templateInstantiate(ctx context.Context, rt *runtime, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: aurorae template instantiate <id>")
		return 2
	}

	tpl, err := rt.templates.Get(ctx, args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}

	ins := rt.newInstantiator()
	result, err := ins.Instantiate(ctx, tpl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	if err := rt.templates.MarkUsed(ctx, args[0]); err != nil {
		rt.logger.Warn("failed to stamp template lastUsed", "id", args[0], "error", err)
	}

	switch result.Type {
	case "task":
		fmt.Printf("Created task %s in %s.\n", result.ID, result.Quadrant)
	default:
		fmt.Printf("Created routine %s.\n", result.ID)
	}
	return 0
}

func runNoteCommand(ctx context.Context, quietLogs bool, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: aurorae note <list|export>")
		return 2
	}

	rt, err := openRuntime(ctx, quietLogs)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	defer rt.Close(ctx)

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "list":
		entries, err := rt.dump.Entries()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return 1
		}
		for _, entry := range entries {
			fmt.Printf("  %-40s %s\n", entry.ID, entry.Title)
		}
		fmt.Printf("%d notes\n", len(entries))
		return 0
	case "export":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "usage: aurorae note export <id>")
			return 2
		}
		path, err := rt.dump.ExportMarkdown(rt.cfg.ExportDir, args[1], rt.cfg.MaxFilenameLength)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return 1
		}
		fmt.Println("Exported to", path)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown note action %q\n", args[0])
		return 2
	}
}

func runBackupCommand(ctx context.Context, quietLogs bool, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: aurorae backup <now|list|clean>")
		return 2
	}

	rt, err := openRuntime(ctx, quietLogs)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	defer rt.Close(ctx)

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "now":
		return backupNow(ctx, rt)
	case "list":
		return backupList(ctx, rt, args[1:])
	case "clean":
		return backupClean(ctx, rt, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown backup action %q\n", args[0])
		return 2
	}
}

func backupNow(ctx context.Context, rt *runtime) int {
	sched := rt.newScheduler()
	id, err := sched.Snapshot(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	fmt.Println("Snapshot stored as backup", id)
	return 0
}

func backupList(ctx context.Context, rt *runtime, args []string) int {
	fs := flag.NewFlagSet("backup list", flag.ExitOnError)
	limit := fs.Int("n", 10, "number of snapshots to show")
	_ = fs.Parse(args)

	backups, err := rt.store.RecentBackups(ctx, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	for _, b := range backups {
		when := time.UnixMilli(b.Timestamp).UTC().Format(time.RFC3339)
		fmt.Printf("  %-6d %s  %d bytes\n", b.ID, when, b.Size)
	}
	fmt.Printf("%d snapshots\n", len(backups))
	return 0
}

func backupClean(ctx context.Context, rt *runtime, args []string) int {
	fs := flag.NewFlagSet("backup clean", flag.ExitOnError)
	keep := fs.Int("keep", 0, "snapshots to retain (default: configured limit)")
	_ = fs.Parse(args)

	n := *keep
	if n <= 0 {
		n = rt.cfg.Backup.Keep
	}
	deleted, err := rt.store.CleanOldBackups(ctx, n)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	fmt.Printf("Deleted %d snapshots, kept the newest %d.\n", deleted, n)
	return 0
}
