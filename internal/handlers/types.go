package handlers

import "time"

// PredictionResult is one accepted image in an API response.
type PredictionResult struct {
	File  string `json:"file"`
	Label string `json:"label"`
}

// RejectedImage is one skipped image in an API response.
type RejectedImage struct {
	File    string `json:"file"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type PredictionResponse struct {
	SubmissionID string             `json:"submission_id"`
	Results      []PredictionResult `json:"results"`
	Rejected     []RejectedImage    `json:"rejected"`
	Export       string             `json:"export"`
	HistoryError string             `json:"history_error,omitempty"`
}

// HistoryEntry is one log row. RawTime is set instead of Time when the
// stored timestamp could not be parsed.
type HistoryEntry struct {
	File    string     `json:"file"`
	Label   string     `json:"label"`
	Time    *time.Time `json:"time,omitempty"`
	RawTime string     `json:"raw_time,omitempty"`
}

type HistoryResponse struct {
	Records []HistoryEntry `json:"records"`
}

type errorResponse struct {
	Error string `json:"error"`
}
