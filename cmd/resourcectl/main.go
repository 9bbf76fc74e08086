package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"github.com/tendant/resource-hub/pkg/resourcehub"
	"github.com/tendant/resource-hub/pkg/resourcehub/config"
)

const usage = `Resource Hub CLI

Works directly on the configured metadata store and blob store.

USAGE:
  resourcectl <command> [options] [arguments]

COMMANDS:
  list                 List every resource
  search               Search by subject, semester and/or title keyword
  get <id>             Show one resource
  upload <file>        Upload a file as a new resource
  download <id>        Download a resource (counts as a download)
  stats                Aggregated counts, bytes and downloads

ENVIRONMENT VARIABLES:
  DATABASE_URL      "memory" (default), postgres://... or mongodb://...
  STORAGE_URL       file:///path (default ./uploads), memory:// or s3://bucket?region=...
  DB_SCHEMA         PostgreSQL schema name
  MONGO_DATABASE    MongoDB database name (default: resourcehub)
  KEY_GENERATOR     unique (default), timestamp or sharded

  Configuration can be loaded from a .env file in the current directory.
  With the in-memory metadata store nothing survives between invocations.

EXAMPLES:
  resourcectl list
  resourcectl search --subject=Math --semester=3
  resourcectl search --keyword=calc --json
  resourcectl upload --title="Midterm Notes" --subject=Physics --semester=2 --type=notes ./notes.pdf
  resourcectl download 42 --out=./notes.pdf
  resourcectl stats --json

OPTIONS:
  --subject=<s>        Filter or set subject
  --semester=<n>       Filter or set semester
  --keyword=<s>        Case-insensitive title filter (search only)
  --title=<s>          Title (upload only)
  --type=<s>           Resource type (upload only)
  --uploader=<s>       Uploader name (upload only, default: Anonymous)
  --out=<path>         Output file (download only, default: original file name)
  --json               Output as JSON
`

type options struct {
	flags      map[string]string
	positional []string
	json       bool
}

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	command := os.Args[1]

	if command == "help" || command == "--help" || command == "-h" {
		fmt.Print(usage)
		fmt.Println(config.EnvUsage())
		os.Exit(0)
	}

	cfg, err := config.Load(config.WithEnv(), config.WithEventLogging(false))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	components, err := cfg.Build(ctx, nil)
	if err != nil {
		log.Fatalf("Failed to build service: %v", err)
	}
	defer components.Close()

	opts := parseArgs(os.Args[2:])

	if err := run(ctx, os.Stdout, components.Service, command, opts); err != nil {
		components.Close()
		log.Fatalf("%s failed: %v", command, err)
	}
}

func run(ctx context.Context, out io.Writer, svc resourcehub.Service, command string, opts options) error {
	switch command {
	case "list":
		resources, err := svc.ListResources(ctx)
		if err != nil {
			return err
		}
		return printResources(out, resources, opts.json)
	case "search":
		return handleSearch(ctx, out, svc, opts)
	case "get":
		return handleGet(ctx, out, svc, opts)
	case "upload":
		return handleUpload(ctx, out, svc, opts)
	case "download":
		return handleDownload(ctx, out, svc, opts)
	case "stats":
		resources, err := svc.ListResources(ctx)
		if err != nil {
			return err
		}
		return printStats(out, computeStats(resources), opts.json)
	default:
		return fmt.Errorf("unknown command: %s\n\n%s", command, usage)
	}
}

func parseArgs(args []string) options {
	opts := options{flags: map[string]string{}}
	for _, arg := range args {
		if arg == "--json" {
			opts.json = true
			continue
		}
		key, value := parseFlag(arg)
		if key == "" {
			opts.positional = append(opts.positional, arg)
			continue
		}
		opts.flags[key] = value
	}
	return opts
}

func parseFlag(arg string) (string, string) {
	if len(arg) > 2 && arg[:2] == "--" {
		arg = arg[2:]
		if key, value, ok := strings.Cut(arg, "="); ok {
			return key, value
		}
		return arg, "true"
	}
	return "", ""
}

func handleSearch(ctx context.Context, out io.Writer, svc resourcehub.Service, opts options) error {
	req := resourcehub.SearchResourcesRequest{
		Subject: opts.flags["subject"],
		Keyword: opts.flags["keyword"],
	}
	if raw, ok := opts.flags["semester"]; ok {
		semester, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("semester must be an integer: %q", raw)
		}
		req.Semester = &semester
	}

	resources, err := svc.SearchResources(ctx, req)
	if err != nil {
		return err
	}
	return printResources(out, resources, opts.json)
}

func handleGet(ctx context.Context, out io.Writer, svc resourcehub.Service, opts options) error {
	id, err := positionalID(opts)
	if err != nil {
		return err
	}
	resource, err := svc.GetResource(ctx, id)
	if err != nil {
		return err
	}
	if opts.json {
		return writeJSON(out, resource)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%d\n", resource.ID)
	fmt.Fprintf(w, "Title:\t%s\n", resource.Title)
	fmt.Fprintf(w, "Subject:\t%s\n", resource.Subject)
	fmt.Fprintf(w, "Semester:\t%d\n", resource.Semester)
	fmt.Fprintf(w, "Type:\t%s\n", dash(resource.Type))
	fmt.Fprintf(w, "File:\t%s (%d bytes)\n", resource.FileName, resource.FileSize)
	fmt.Fprintf(w, "Storage path:\t%s\n", resource.StoragePath)
	fmt.Fprintf(w, "Uploader:\t%s\n", resource.UploaderName)
	fmt.Fprintf(w, "Uploaded:\t%s\n", resource.UploadedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Downloads:\t%d\n", resource.DownloadCount)
	return w.Flush()
}

func handleUpload(ctx context.Context, out io.Writer, svc resourcehub.Service, opts options) error {
	if len(opts.positional) != 1 {
		return fmt.Errorf("upload takes exactly one file argument")
	}
	path := opts.positional[0]

	semester, err := strconv.Atoi(opts.flags["semester"])
	if err != nil {
		return fmt.Errorf("semester must be an integer: %q", opts.flags["semester"])
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	resource, err := svc.UploadResource(ctx, resourcehub.UploadResourceRequest{
		Title:        opts.flags["title"],
		Subject:      opts.flags["subject"],
		Semester:     semester,
		Type:         opts.flags["type"],
		UploaderName: opts.flags["uploader"],
		FileName:     filepath.Base(path),
		Reader:       f,
	})
	if err != nil {
		return err
	}

	if opts.json {
		return writeJSON(out, resource)
	}
	fmt.Fprintf(out, "Uploaded resource %d (%s, %d bytes)\n", resource.ID, resource.FileName, resource.FileSize)
	return nil
}

func handleDownload(ctx context.Context, out io.Writer, svc resourcehub.Service, opts options) error {
	id, err := positionalID(opts)
	if err != nil {
		return err
	}

	download, err := svc.ResolveDownload(ctx, id)
	if err != nil {
		return err
	}
	defer download.Reader.Close()

	target := opts.flags["out"]
	if target == "" {
		target = download.FileName
	}

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	written, err := io.Copy(f, download.Reader)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(target)
		return err
	}

	fmt.Fprintf(out, "Wrote %d bytes to %s (downloads: %d)\n", written, target, download.Resource.DownloadCount)
	return nil
}

func positionalID(opts options) (int64, error) {
	if len(opts.positional) != 1 {
		return 0, fmt.Errorf("expected exactly one resource id")
	}
	id, err := strconv.ParseInt(opts.positional[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid resource id: %q", opts.positional[0])
	}
	return id, nil
}

func printResources(out io.Writer, resources []*resourcehub.Resource, useJSON bool) error {
	if useJSON {
		return writeJSON(out, resources)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tTITLE\tSUBJECT\tSEM\tTYPE\tFILE\tSIZE\tDOWNLOADS\tUPLOADED\n")
	for _, r := range resources {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\t%d\t%d\t%s\n",
			r.ID,
			truncate(r.Title, 30),
			truncate(r.Subject, 15),
			r.Semester,
			truncate(dash(r.Type), 10),
			truncate(r.FileName, 25),
			r.FileSize,
			r.DownloadCount,
			r.UploadedAt.Format("2006-01-02 15:04"),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nTotal: %d\n", len(resources))
	return nil
}

// stats aggregates a resource listing
type stats struct {
	TotalCount     int            `json:"total_count"`
	TotalBytes     int64          `json:"total_bytes"`
	TotalDownloads int            `json:"total_downloads"`
	BySubject      map[string]int `json:"by_subject"`
	BySemester     map[int]int    `json:"by_semester"`
}

func computeStats(resources []*resourcehub.Resource) stats {
	s := stats{
		BySubject:  map[string]int{},
		BySemester: map[int]int{},
	}
	for _, r := range resources {
		s.TotalCount++
		s.TotalBytes += r.FileSize
		s.TotalDownloads += r.DownloadCount
		s.BySubject[r.Subject]++
		s.BySemester[r.Semester]++
	}
	return s
}

func printStats(out io.Writer, s stats, useJSON bool) error {
	if useJSON {
		return writeJSON(out, s)
	}

	fmt.Fprintln(out, "=== Resource Statistics ===")
	fmt.Fprintf(out, "\nTotal Count:     %d\n", s.TotalCount)
	fmt.Fprintf(out, "Total Bytes:     %d\n", s.TotalBytes)
	fmt.Fprintf(out, "Total Downloads: %d\n", s.TotalDownloads)

	if len(s.BySubject) > 0 {
		fmt.Fprintln(out, "\nBy Subject:")
		subjects := make([]string, 0, len(s.BySubject))
		for subject := range s.BySubject {
			subjects = append(subjects, subject)
		}
		sort.Strings(subjects)
		for _, subject := range subjects {
			fmt.Fprintf(out, "  %-20s: %d\n", truncate(subject, 20), s.BySubject[subject])
		}
	}

	if len(s.BySemester) > 0 {
		fmt.Fprintln(out, "\nBy Semester:")
		semesters := make([]int, 0, len(s.BySemester))
		for semester := range s.BySemester {
			semesters = append(semesters, semester)
		}
		sort.Ints(semesters)
		for _, semester := range semesters {
			fmt.Fprintf(out, "  %-20d: %d\n", semester, s.BySemester[semester])
		}
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
