package session

import "time"

// State identifies which ingestion workflow a session is driving.
type State string

const (
	StateCreatingMovie          State = "creating_movie"
	StateCreatingSerial         State = "creating_serial"
	StateAttachingVideo         State = "attaching_video"
	StateCreatingField          State = "creating_field"
	StateAddingMandatoryChannel State = "adding_mandatory_channel"
	StateAddingDatabaseChannel  State = "adding_database_channel"
	StateAddingAdmin            State = "adding_admin"
)

// FieldOption is one entry of the numbered field list shown during field
// selection. The list is frozen into the draft so a later index always
// resolves against what the admin actually saw.
type FieldOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChannelOption mirrors FieldOption for storage-channel selection.
type ChannelOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Draft accumulates the partial entity a workflow is building. Fields stay
// zero until the step that collects them runs.
type Draft struct {
	Code         int    `json:"code,omitempty"`
	Title        string `json:"title,omitempty"`
	Genre        string `json:"genre,omitempty"`
	Description  string `json:"description,omitempty"`
	Season       int    `json:"season,omitempty"`
	EpisodeCount int    `json:"episode_count,omitempty"`
	PosterFileID string `json:"poster_file_id,omitempty"`

	Fields          []FieldOption `json:"fields,omitempty"`
	WaitingForField bool          `json:"waiting_for_field,omitempty"`
	SelectedFieldID string        `json:"selected_field_id,omitempty"`

	PartNumber        int      `json:"part_number,omitempty"`
	VideoFileIDs      []string `json:"video_file_ids,omitempty"`
	StorageMessageIDs []int    `json:"storage_message_ids,omitempty"`
	PendingVideoID    string   `json:"pending_video_id,omitempty"`

	// Video attachment targets an existing record.
	TargetID    string `json:"target_id,omitempty"`
	TargetCode  int    `json:"target_code,omitempty"`
	TargetTitle string `json:"target_title,omitempty"`

	// Field / channel / admin creation.
	Name        string          `json:"name,omitempty"`
	ChannelRef  string          `json:"channel_ref,omitempty"`
	ChannelLink string          `json:"channel_link,omitempty"`
	Channels    []ChannelOption `json:"channels,omitempty"`
}

// merge copies every non-zero field of p over d, leaving the rest intact.
// This is the accumulation guarantee multi-step flows rely on.
func (d *Draft) merge(p Draft) {
	if p.Code != 0 {
		d.Code = p.Code
	}
	if p.Title != "" {
		d.Title = p.Title
	}
	if p.Genre != "" {
		d.Genre = p.Genre
	}
	if p.Description != "" {
		d.Description = p.Description
	}
	if p.Season != 0 {
		d.Season = p.Season
	}
	if p.EpisodeCount != 0 {
		d.EpisodeCount = p.EpisodeCount
	}
	if p.PosterFileID != "" {
		d.PosterFileID = p.PosterFileID
	}
	if p.Fields != nil {
		d.Fields = p.Fields
	}
	if p.WaitingForField {
		d.WaitingForField = true
	}
	if p.SelectedFieldID != "" {
		d.SelectedFieldID = p.SelectedFieldID
	}
	if p.PartNumber != 0 {
		d.PartNumber = p.PartNumber
	}
	if p.VideoFileIDs != nil {
		d.VideoFileIDs = p.VideoFileIDs
	}
	if p.StorageMessageIDs != nil {
		d.StorageMessageIDs = p.StorageMessageIDs
	}
	if p.PendingVideoID != "" {
		d.PendingVideoID = p.PendingVideoID
	}
	if p.TargetID != "" {
		d.TargetID = p.TargetID
	}
	if p.TargetCode != 0 {
		d.TargetCode = p.TargetCode
	}
	if p.TargetTitle != "" {
		d.TargetTitle = p.TargetTitle
	}
	if p.Name != "" {
		d.Name = p.Name
	}
	if p.ChannelRef != "" {
		d.ChannelRef = p.ChannelRef
	}
	if p.ChannelLink != "" {
		d.ChannelLink = p.ChannelLink
	}
	if p.Channels != nil {
		d.Channels = p.Channels
	}
}

// Session is the per-admin workflow state. At most one exists per owner;
// creating a new one silently discards the old.
type Session struct {
	OwnerID int64     `json:"owner_id"`
	State   State     `json:"state"`
	Step    int       `json:"step"`
	Data    Draft     `json:"data"`
	Touched time.Time `json:"touched"`
}

// Store holds one active session per owner id. Implementations are safe for
// concurrent use across owners; per-owner event serialization is the caller's
// job (the engine holds a keyed lock around each event).
type Store interface {
	// Create starts a fresh session, overwriting any existing one.
	Create(ownerID int64, state State) *Session
	// Get returns a copy of the owner's session, or false if none exists.
	Get(ownerID int64) (*Session, bool)
	// MergeData shallow-merges non-zero fields of partial into the draft.
	MergeData(ownerID int64, partial Draft)
	// SetStep moves the step cursor.
	SetStep(ownerID int64, step int)
	// AdvanceStep increments the step cursor by one.
	AdvanceStep(ownerID int64)
	// Mutate applies fn to the live session; used for the few updates merge
	// cannot express (clearing a pending video, resetting a flag).
	Mutate(ownerID int64, fn func(*Session)) bool
	// Clear drops the session.
	Clear(ownerID int64)
}
