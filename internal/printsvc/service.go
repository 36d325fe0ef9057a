// Package printsvc exposes the print pipeline as a Connect service.
package printsvc

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"print-relay/internal/accounting"
	"print-relay/internal/archive"
	"print-relay/internal/cache"
	"print-relay/internal/layout"
	"print-relay/internal/logger"
	"print-relay/internal/mailer"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MaxImages is how many photos one session may collect.
	MaxImages = 20

	defaultSessionTTL = 24 * time.Hour
	mergedImagesName  = "images.pdf"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Mailer delivers a finished job to the printer
type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) (*mailer.Receipt, error)
}

// Accounts authorizes users and records usage
type Accounts interface {
	IsAuthorized(ctx context.Context, chatID int64) bool
	IsAdmin(ctx context.Context, chatID int64) bool
	LogPrint(ctx context.Context, entry accounting.PrintLog) error
	MonthlyPages(ctx context.Context, chatID int64) int
	QuarterlyReport(ctx context.Context) (string, error)
}

// Config wires a Service. Mailer and Archive are optional.
type Config struct {
	Processor    *layout.Processor
	Store        cache.SourceStore
	Mailer       Mailer
	Archive      archive.Archive
	Accounts     Accounts
	PrinterEmail string
	SpoolDir     string
	SessionTTL   time.Duration
	Logger       *zap.Logger
}

// Service implements the print relay procedures
type Service struct {
	processor    *layout.Processor
	store        cache.SourceStore
	mailer       Mailer
	archive      archive.Archive
	accounts     Accounts
	printerEmail string
	spoolDir     string
	ttl          time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// New creates a Service
func New(cfg Config) (*Service, error) {
	if cfg.Processor == nil {
		return nil, errors.New("printsvc: processor is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("printsvc: source store is required")
	}
	if cfg.Accounts == nil {
		return nil, errors.New("printsvc: accounts are required")
	}

	s := &Service{
		processor:    cfg.Processor,
		store:        cfg.Store,
		mailer:       cfg.Mailer,
		archive:      cfg.Archive,
		accounts:     cfg.Accounts,
		printerEmail: cfg.PrinterEmail,
		spoolDir:     cfg.SpoolDir,
		ttl:          cfg.SessionTTL,
		logger:       cfg.Logger,
		now:          time.Now,
	}
	if s.archive == nil {
		s.archive = archive.NopArchive{}
	}
	if s.spoolDir == "" {
		s.spoolDir = filepath.Join(os.TempDir(), "print-relay")
	}
	if s.ttl <= 0 {
		s.ttl = defaultSessionTTL
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s, nil
}

// Upload stores the source of a session and renders its first preview.
// Images are spooled to disk so they can be re-derived in grayscale, and
// images sent to an existing image session are appended to it.
func (s *Service) Upload(
	ctx context.Context,
	req *connect.Request[UploadRequest],
) (*connect.Response[UploadResponse], error) {
	msg := req.Msg
	sessionID := msg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	} else if !sessionIDPattern.MatchString(sessionID) {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid session id %q", sessionID))
	}

	allImages := true
	for _, f := range msg.Files {
		if !layout.IsImage(f.Name) {
			allImages = false
			break
		}
	}

	var (
		res *UploadResponse
		err error
	)
	switch {
	case allImages:
		res, err = s.uploadImages(ctx, sessionID, msg.Files)
	case len(msg.Files) == 1:
		res, err = s.uploadDocument(ctx, sessionID, msg.Files[0])
	default:
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("only images can be uploaded together"))
	}
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(res), nil
}

func (s *Service) uploadDocument(ctx context.Context, sessionID string, f File) (*UploadResponse, error) {
	intake, err := s.processor.ValidateAndPreview(ctx, f.Data, f.Name)
	if err != nil {
		s.logger.Info("upload rejected", zap.String("session_id", sessionID), zap.String("file", f.Name), zap.Error(err))
		return nil, err
	}

	// A new document replaces whatever the session held before.
	s.removeSpool(sessionID)

	entry := &cache.Entry{
		FileName:  f.Name,
		Data:      intake.PDF,
		Pages:     intake.Pages,
		CreatedAt: s.now(),
	}
	if err := s.store.Put(ctx, sessionID, entry, s.ttl); err != nil {
		return nil, fmt.Errorf("store session source: %w", err)
	}

	s.logger.Info("document stored",
		zap.String("session_id", sessionID),
		zap.String("file", f.Name),
		zap.Int("pages", intake.Pages))
	return &UploadResponse{
		SessionID: sessionID,
		FileName:  f.Name,
		Pages:     intake.Pages,
		Preview:   intake.Preview,
	}, nil
}

func (s *Service) uploadImages(ctx context.Context, sessionID string, files []File) (*UploadResponse, error) {
	var paths []string
	existing, err := s.store.Get(ctx, sessionID)
	switch {
	case err == nil && len(existing.SourcePaths) > 0:
		paths = append(paths, existing.SourcePaths...)
	case err == nil || errors.Is(err, cache.ErrNotFound):
		s.removeSpool(sessionID)
	default:
		return nil, fmt.Errorf("load session source: %w", err)
	}

	if len(paths)+len(files) > MaxImages {
		return nil, connect.NewError(connect.CodeInvalidArgument,
			fmt.Errorf("at most %d images can be printed together", MaxImages))
	}

	added, err := s.spool(sessionID, len(paths), files)
	if err != nil {
		return nil, err
	}
	paths = append(paths, added...)

	intake, err := s.processor.MergeImages(ctx, paths, false)
	if err != nil {
		for _, p := range added {
			_ = os.Remove(p)
		}
		s.logger.Info("images rejected", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}

	fileName := files[0].Name
	if len(paths) > 1 {
		fileName = mergedImagesName
	}
	entry := &cache.Entry{
		FileName:    fileName,
		Data:        intake.PDF,
		SourcePaths: paths,
		Pages:       intake.Pages,
		CreatedAt:   s.now(),
	}
	if err := s.store.Put(ctx, sessionID, entry, s.ttl); err != nil {
		return nil, fmt.Errorf("store session source: %w", err)
	}

	s.logger.Info("images stored",
		zap.String("session_id", sessionID),
		zap.Int("images", len(paths)),
		zap.Int("pages", intake.Pages))
	return &UploadResponse{
		SessionID: sessionID,
		FileName:  fileName,
		Pages:     intake.Pages,
		Images:    len(paths),
		Preview:   intake.Preview,
	}, nil
}

// spool writes files to the session directory, numbered after offset.
// Photos are shrunk and stored as JPEG, anything the decoder cannot read
// is kept as received.
func (s *Service) spool(sessionID string, offset int, files []File) ([]string, error) {
	dir := s.sessionDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create spool directory: %w", err)
	}

	paths := make([]string, 0, len(files))
	for i, f := range files {
		base := filepath.Base(f.Name)
		data, compressed := layout.CompressPhoto(f.Data)
		if compressed {
			base = strings.TrimSuffix(base, filepath.Ext(base)) + ".jpg"
		} else {
			s.logger.Debug("photo kept as received", zap.String("file", f.Name))
		}

		path := filepath.Join(dir, fmt.Sprintf("%02d-%s", offset+i+1, base))
		if err := os.WriteFile(path, data, 0o600); err != nil {
			for _, p := range paths {
				_ = os.Remove(p)
			}
			return nil, fmt.Errorf("spool %s: %w", f.Name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (s *Service) sessionDir(sessionID string) string {
	return filepath.Join(s.spoolDir, sessionID)
}

func (s *Service) removeSpool(sessionID string) {
	if err := os.RemoveAll(s.sessionDir(sessionID)); err != nil {
		s.logger.Warn("failed to remove spooled images", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// Preview re-applies options to the cached source of a session
func (s *Service) Preview(
	ctx context.Context,
	req *connect.Request[PreviewRequest],
) (*connect.Response[PreviewResponse], error) {
	entry, err := s.store.Get(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, toConnectError(err)
	}

	result, err := s.processor.ApplyOptions(ctx, entry.Data, req.Msg.Options.layout(entry.FileName, entry.SourcePaths))
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&PreviewResponse{
		Pages:   result.Pages,
		Preview: s.processor.Preview(ctx, result.PDF),
	}), nil
}

// Check builds the final document without sending it, so the user can
// look at exactly what would be printed.
func (s *Service) Check(
	ctx context.Context,
	req *connect.Request[CheckRequest],
) (*connect.Response[CheckResponse], error) {
	entry, err := s.store.Get(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, toConnectError(err)
	}

	result, err := s.processor.ApplyOptions(ctx, entry.Data, req.Msg.Options.layout(entry.FileName, entry.SourcePaths))
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&CheckResponse{
		FileName: CheckFileName(entry.FileName),
		Pages:    result.Pages,
		PDF:      result.PDF,
	}), nil
}

// CheckFileName names the document returned by Check.
func CheckFileName(fileName string) string {
	return "check_" + strings.TrimSuffix(fileName, filepath.Ext(fileName)) + ".pdf"
}

// Submit builds the final document and mails it to the printer. The
// session is kept when delivery fails so the job can be retried.
func (s *Service) Submit(
	ctx context.Context,
	req *connect.Request[SubmitRequest],
) (*connect.Response[SubmitResponse], error) {
	msg := req.Msg
	if !s.accounts.IsAuthorized(ctx, msg.ChatID) {
		return nil, connect.NewError(connect.CodePermissionDenied, fmt.Errorf("chat %d is not allowed to print", msg.ChatID))
	}
	if s.mailer == nil || s.printerEmail == "" {
		return nil, connect.NewError(connect.CodeUnavailable, errors.New("mail transport is not configured"))
	}

	entry, err := s.store.Get(ctx, msg.SessionID)
	if err != nil {
		return nil, toConnectError(err)
	}

	jobID := uuid.NewString()
	ctx, log := logger.WithJobID(ctx, s.logger, jobID)

	opts := msg.Options.layout(entry.FileName, entry.SourcePaths)
	result, err := s.processor.ApplyOptions(ctx, entry.Data, opts)
	if err != nil {
		log.Info("job rejected", zap.Error(err))
		return nil, toConnectError(err)
	}

	receipt, err := s.mailer.Send(ctx, mailer.Message{
		Attachment: result.PDF,
		FileName:   mailer.AttachmentName(entry.FileName),
		To:         s.printerEmail,
		Subject:    mailer.BuildSubject(entry.FileName, opts.TotalCopies, !opts.Grayscale),
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	s.record(ctx, msg, entry, opts, result)
	s.discard(ctx, msg.SessionID, entry)

	log.Info("job delivered",
		zap.Int64("chat_id", msg.ChatID),
		zap.String("message_id", receipt.MessageID),
		zap.Int("pages", result.Pages))
	return connect.NewResponse(&SubmitResponse{
		JobID:     jobID,
		MessageID: receipt.MessageID,
		Pages:     result.Pages,
	}), nil
}

// record archives and logs a delivered job. Neither failure undoes the
// delivery.
func (s *Service) record(ctx context.Context, msg *SubmitRequest, entry *cache.Entry, opts layout.Options, result *layout.Result) {
	log := logger.FromContext(ctx)
	jobID := logger.JobID(ctx)

	if err := s.archive.Put(ctx, archive.Key(jobID, s.now()), result.PDF); err != nil {
		log.Warn("failed to archive job", zap.Error(err))
	}

	err := s.accounts.LogPrint(ctx, accounting.PrintLog{
		ChatID:    msg.ChatID,
		FileName:  entry.FileName,
		Pages:     result.Pages,
		Copies:    opts.TotalCopies,
		PrintType: msg.Options.PrintType,
		Color:     !opts.Grayscale,
		JobID:     jobID,
	})
	if err != nil {
		log.Warn("failed to record job", zap.Error(err))
	}
}

func (s *Service) discard(ctx context.Context, sessionID string, entry *cache.Entry) {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		s.logger.Warn("failed to drop session", zap.String("session_id", sessionID), zap.Error(err))
	}
	if len(entry.SourcePaths) > 0 {
		s.removeSpool(sessionID)
	}
}

// Stats returns the pages a user printed this month
func (s *Service) Stats(
	ctx context.Context,
	req *connect.Request[StatsRequest],
) (*connect.Response[StatsResponse], error) {
	if !s.accounts.IsAuthorized(ctx, req.Msg.ChatID) {
		return nil, connect.NewError(connect.CodePermissionDenied, fmt.Errorf("chat %d is not authorized", req.Msg.ChatID))
	}
	return connect.NewResponse(&StatsResponse{
		MonthlyPages: s.accounts.MonthlyPages(ctx, req.Msg.ChatID),
	}), nil
}

// Report returns the quarterly usage report to admins
func (s *Service) Report(
	ctx context.Context,
	req *connect.Request[ReportRequest],
) (*connect.Response[ReportResponse], error) {
	if !s.accounts.IsAdmin(ctx, req.Msg.ChatID) {
		return nil, connect.NewError(connect.CodePermissionDenied, fmt.Errorf("chat %d is not an admin", req.Msg.ChatID))
	}
	report, err := s.accounts.QuarterlyReport(ctx)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&ReportResponse{CSV: report}), nil
}

// toConnectError maps pipeline, cache and mail failures to Connect codes.
// Layout failures carry their code and page count in the error metadata.
func toConnectError(err error) error {
	var (
		cerr *connect.Error
		lerr *layout.Error
	)
	switch {
	case errors.As(err, &cerr):
		return cerr
	case errors.As(err, &lerr):
		code := connect.CodeInternal
		switch lerr.Code {
		case layout.ErrCodeUnsupportedFormat, layout.ErrCodePageLimitExceeded:
			code = connect.CodeInvalidArgument
		case layout.ErrCodeConversionFailed:
			code = connect.CodeFailedPrecondition
		}
		out := connect.NewError(code, err)
		out.Meta().Set(ErrorCodeHeader, lerr.Code)
		if lerr.Pages > 0 {
			out.Meta().Set(PageCountHeader, strconv.Itoa(lerr.Pages))
		}
		return out
	case errors.Is(err, cache.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return connect.NewError(connect.CodeNotFound, errors.New("session expired, please send the file again"))
	case mailer.IsTransportError(err):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
