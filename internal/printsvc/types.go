package printsvc

import "print-relay/internal/layout"

// File is one uploaded file
type File struct {
	Name string `json:"name" validate:"required,max=255"`
	Data []byte `json:"data" validate:"required,min=1"`
}

// UploadRequest starts a session, or adds images to an image session
type UploadRequest struct {
	SessionID string `json:"sessionId,omitempty" validate:"max=64"`
	Files     []File `json:"files" validate:"required,min=1,dive"`
}

// UploadResponse describes the document stored for the session
type UploadResponse struct {
	SessionID string `json:"sessionId"`
	FileName  string `json:"fileName"`
	Pages     int    `json:"pages"`
	Images    int    `json:"images,omitempty"`
	Preview   []byte `json:"preview"`
}

// PrintOptions are the settings a user picks before printing
type PrintOptions struct {
	PagesPerSheet int    `json:"pagesPerSheet,omitempty"`
	CopiesPerPage int    `json:"copiesPerPage,omitempty" validate:"gte=0,lte=100"`
	Grayscale     bool   `json:"grayscale,omitempty"`
	TotalCopies   int    `json:"totalCopies,omitempty" validate:"gte=0,lte=100"`
	PrintType     string `json:"printType,omitempty" validate:"max=100"`
}

func (o PrintOptions) layout(fileName string, sourcePaths []string) layout.Options {
	return layout.Options{
		PagesPerSheet: o.PagesPerSheet,
		CopiesPerPage: o.CopiesPerPage,
		Grayscale:     o.Grayscale,
		TotalCopies:   o.TotalCopies,
		SourcePaths:   sourcePaths,
		FileName:      fileName,
	}.Normalize()
}

type PreviewRequest struct {
	SessionID string       `json:"sessionId" validate:"required"`
	Options   PrintOptions `json:"options"`
}

type PreviewResponse struct {
	Pages   int    `json:"pages"`
	Preview []byte `json:"preview"`
}

type CheckRequest struct {
	SessionID string       `json:"sessionId" validate:"required"`
	Options   PrintOptions `json:"options"`
}

// CheckResponse carries the exact document Submit would send.
type CheckResponse struct {
	FileName string `json:"fileName"`
	Pages    int    `json:"pages"`
	PDF      []byte `json:"pdf"`
}

type SubmitRequest struct {
	SessionID string       `json:"sessionId" validate:"required"`
	ChatID    int64        `json:"chatId" validate:"required"`
	Options   PrintOptions `json:"options"`
}

type SubmitResponse struct {
	JobID     string `json:"jobId"`
	MessageID string `json:"messageId"`
	Pages     int    `json:"pages"`
}

type StatsRequest struct {
	ChatID int64 `json:"chatId" validate:"required"`
}

type StatsResponse struct {
	MonthlyPages int `json:"monthlyPages"`
}

type ReportRequest struct {
	ChatID int64 `json:"chatId" validate:"required"`
}

type ReportResponse struct {
	CSV string `json:"csv"`
}
