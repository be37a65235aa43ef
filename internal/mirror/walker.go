package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/gdrive-mirror/internal/gdrive"
)

// RemoteService is the subset of the Drive client the walker needs.
// Satisfied by *gdrive.Client.
type RemoteService interface {
	ListChildren(ctx context.Context, folderID string, includeTrashed bool, pageToken string) (*gdrive.Page, error)
	Download(ctx context.Context, itemID string, w io.Writer) (int64, error)
	Export(ctx context.Context, itemID, mimeType string, w io.Writer) (int64, error)
}

// WalkerConfig wires a Walker to its collaborators.
type WalkerConfig struct {
	Remote   RemoteService
	FS       afero.Fs     // defaults to the OS filesystem
	Exports  *ExportTable // defaults to DefaultExportTable
	Observer Observer     // optional; the returned Report always observes
	Logger   *slog.Logger // defaults to slog.Default
	Sync     SyncConfig
	DirPerm  fs.FileMode // defaults to DefaultDirPerm
	FilePerm fs.FileMode // defaults to DefaultFilePerm
	RootID   string      // defaults to gdrive.RootFolderID

	// Bandwidth throttles every fetch of the run. Nil is unlimited.
	Bandwidth *BandwidthLimiter
}

// Walker mirrors one remote folder tree into a local directory.
type Walker struct {
	remote   RemoteService
	exports  *ExportTable
	oracle   *Oracle
	mat      *Materializer
	observer Observer
	logger   *slog.Logger
	cfg      SyncConfig
	rootID   string
	limiter  *BandwidthLimiter
}

// frame is one folder waiting to be drained.
type frame struct {
	folderID string
	dest     string
	depth    int
}

// fileTask is the per-item work planned for one page, after its name has
// been resolved.
type fileTask struct {
	item   gdrive.Item
	kind   Kind
	path   string
	export Export
}

// NewWalker validates cfg and fills in defaults.
func NewWalker(cfg WalkerConfig) (*Walker, error) {
	if cfg.Remote == nil {
		return nil, errors.New("mirror: walker requires a remote service")
	}

	if cfg.Sync.Destination == "" {
		return nil, errors.New("mirror: walker requires a destination")
	}

	if cfg.Sync.MaxDepth < 0 {
		return nil, fmt.Errorf("mirror: max depth must be >= 0, got %d", cfg.Sync.MaxDepth)
	}

	if cfg.FS == nil {
		cfg.FS = afero.NewOsFs()
	}

	if cfg.Exports == nil {
		cfg.Exports = DefaultExportTable()
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.RootID == "" {
		cfg.RootID = gdrive.RootFolderID
	}

	if cfg.Sync.Workers < 1 {
		cfg.Sync.Workers = 1
	}

	cfg.Sync.Destination = filepath.Clean(cfg.Sync.Destination)

	return &Walker{
		remote:   cfg.Remote,
		exports:  cfg.Exports,
		oracle:   NewOracle(cfg.FS, cfg.Logger),
		mat:      NewMaterializer(cfg.FS, cfg.DirPerm, cfg.FilePerm, cfg.Logger),
		observer: cfg.Observer,
		logger:   cfg.Logger,
		cfg:      cfg.Sync,
		rootID:   cfg.RootID,
		limiter:  cfg.Bandwidth,
	}, nil
}

// Run mirrors the tree. Folders are visited depth-first in listing order
// from an explicit stack. Within a page, names are resolved in listing order
// before any file work starts, so the names chosen do not depend on the
// worker count. The first fatal error aborts the run; the Report covers the
// work done up to that point.
func (w *Walker) Run(ctx context.Context) (*Report, error) {
	report := &Report{Started: time.Now()}
	obs := MultiObserver{report, w.observer}
	registry := NewNameRegistry()

	defer func() {
		report.mu.Lock()
		report.Finished = time.Now()
		report.mu.Unlock()
	}()

	w.logger.Info("mirror run starting",
		slog.String("destination", w.cfg.Destination),
		slog.Bool("trashed", w.cfg.IncludeTrashed),
		slog.Int("workers", w.cfg.Workers),
		slog.Bool("dry_run", w.cfg.DryRun),
	)

	stack := []frame{{folderID: w.rootID, dest: w.cfg.Destination}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("mirror: run canceled: %w", err)
		}

		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, err := w.drainFolder(ctx, f, registry, obs)
		if err != nil {
			return report, err
		}

		// Reversed so the first listed subfolder is popped first.
		slices.Reverse(children)
		stack = append(stack, children...)
	}

	w.logger.Info("mirror run complete",
		slog.Int("folders", report.Folders),
		slog.Int("fetched", report.Fetched),
		slog.Int("skipped", report.Skipped),
		slog.Int("warnings", len(report.Warnings)),
		slog.Int64("bytes", report.BytesWritten),
		slog.Int("names", registry.Len()),
	)

	return report, nil
}

// drainFolder lists every page of one folder, running each page's file work
// as the page arrives. It returns the subfolder frames in listing order.
func (w *Walker) drainFolder(ctx context.Context, f frame, registry *NameRegistry, obs Observer) ([]frame, error) {
	w.logger.Debug("draining folder",
		slog.String("folder_id", f.folderID),
		slog.String("path", f.dest),
		slog.Int("depth", f.depth),
	)

	if !w.cfg.DryRun {
		if err := w.mat.EnsureDir(f.dest); err != nil {
			return nil, annotate(err, f.folderID, "")
		}
	}

	var children []frame

	pageToken := ""

	for {
		page, err := w.remote.ListChildren(ctx, f.folderID, w.cfg.IncludeTrashed, pageToken)
		if err != nil {
			return nil, &Error{Kind: RemoteListFailure, ItemID: f.folderID, Path: f.dest, Err: err}
		}

		tasks, subfolders := w.planPage(page.Items, f, registry, obs)
		children = append(children, subfolders...)

		if err := w.runTasks(ctx, tasks, obs); err != nil {
			return nil, err
		}

		if page.NextPageToken == "" {
			return children, nil
		}

		pageToken = page.NextPageToken
	}
}

// planPage classifies every item of a page and resolves its local name, in
// listing order. Unsupported items and folders past the depth limit produce
// warnings here; nothing touches the filesystem.
func (w *Walker) planPage(items []gdrive.Item, f frame, registry *NameRegistry, obs Observer) ([]fileTask, []frame) {
	var (
		tasks   []fileTask
		folders []frame
	)

	for i := range items {
		item := items[i]
		kind := w.exports.Classify(&item)

		desired := item.Name

		var export Export

		switch kind {
		case KindUnsupported:
			w.reportUnsupported(&item, filepath.Join(f.dest, Sanitize(item.Name)), obs)
			continue
		case KindNativeDocument:
			var ok bool
			if export, ok = w.exports.Lookup(item.MimeType); !ok {
				w.reportUnsupported(&item, filepath.Join(f.dest, Sanitize(item.Name)), obs)
				continue
			}

			desired = Sanitize(item.Name) + "." + export.Extension
		case KindFolder, KindBinaryFile:
		}

		res := registry.Resolve(f.dest, desired, item.ID)
		path := filepath.Join(f.dest, res.Name)

		if res.Collided {
			obs.OnWarning(Warning{
				Kind:     WarnNameCollision,
				ItemID:   item.ID,
				Name:     item.Name,
				MimeType: item.MimeType,
				Path:     path,
				Detail:   fmt.Sprintf("%q already taken; using %q", res.Desired, res.Name),
			})
		}

		if kind == KindFolder {
			depth := f.depth + 1
			if w.cfg.MaxDepth > 0 && depth > w.cfg.MaxDepth {
				obs.OnWarning(Warning{
					Kind:     WarnDepthLimit,
					ItemID:   item.ID,
					Name:     item.Name,
					MimeType: item.MimeType,
					Path:     path,
					Detail:   fmt.Sprintf("depth %d exceeds limit %d", depth, w.cfg.MaxDepth),
				})

				continue
			}

			obs.OnAction(Action{Decision: Traverse, Kind: kind, ItemID: item.ID, Name: item.Name, Path: path, DryRun: w.cfg.DryRun})
			folders = append(folders, frame{folderID: item.ID, dest: path, depth: depth})

			continue
		}

		tasks = append(tasks, fileTask{item: item, kind: kind, path: path, export: export})
	}

	return tasks, folders
}

func (w *Walker) reportUnsupported(item *gdrive.Item, path string, obs Observer) {
	obs.OnWarning(Warning{
		Kind:     WarnUnsupportedType,
		ItemID:   item.ID,
		Name:     item.Name,
		MimeType: item.MimeType,
		Path:     path,
		Detail:   "no export format and no downloadable content",
	})
	obs.OnAction(Action{Decision: Skip, Kind: KindUnsupported, ItemID: item.ID, Name: item.Name, Path: path, DryRun: w.cfg.DryRun})
}

// runTasks executes one page's file work. With one worker the tasks run in
// order on the calling goroutine; otherwise on an errgroup bounded by the
// worker count, where the first error cancels the rest.
func (w *Walker) runTasks(ctx context.Context, tasks []fileTask, obs Observer) error {
	if len(tasks) == 0 {
		return nil
	}

	if w.cfg.Workers <= 1 {
		for i := range tasks {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("mirror: run canceled: %w", err)
			}

			if err := w.processFile(ctx, &tasks[i], obs); err != nil {
				return err
			}
		}

		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Workers)

	for i := range tasks {
		task := &tasks[i]

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("mirror: run canceled: %w", err)
			}

			return w.processFile(gctx, task, obs)
		})
	}

	return g.Wait()
}

// processFile decides, then fetches and materializes a single file.
func (w *Walker) processFile(ctx context.Context, task *fileTask, obs Observer) error {
	item := &task.item

	force := w.cfg.ForceFiles
	if task.kind == KindNativeDocument {
		force = w.cfg.ForceDocs
	}

	decision, err := w.oracle.Decide(item, task.kind, task.path, force)
	if err != nil {
		return annotate(err, item.ID, item.Name)
	}

	action := Action{Decision: decision, Kind: task.kind, ItemID: item.ID, Name: item.Name, Path: task.path, DryRun: w.cfg.DryRun}

	if decision == Skip || w.cfg.DryRun {
		obs.OnAction(action)
		return nil
	}

	fill := func(dst io.Writer) (int64, error) {
		dst = w.limiter.WrapWriter(ctx, dst)

		if task.kind == KindNativeDocument {
			return w.remote.Export(ctx, item.ID, task.export.MimeType, dst)
		}

		return w.remote.Download(ctx, item.ID, dst)
	}

	n, err := w.mat.WriteFrom(task.path, TimestampsFor(item), fill)
	if err != nil {
		return annotate(err, item.ID, item.Name)
	}

	action.Bytes = n
	obs.OnAction(action)

	return nil
}
