package model

// ScheduleSnapshot is everything slot computation needs about one staff
// member, as stored. Minutes count from midnight in Timezone.
type ScheduleSnapshot struct {
	BusinessID string        `json:"business_id"`
	StaffID    string        `json:"staff_id"`
	Timezone   string        `json:"timezone"`
	Business   []BusinessDay `json:"business"`
	Staff      []StaffDay    `json:"staff"`
}

type BusinessDay struct {
	Weekday     int  `json:"weekday"`
	IsClosed    bool `json:"is_closed"`
	OpenMinute  *int `json:"open_minute,omitempty"`
	CloseMinute *int `json:"close_minute,omitempty"`
}

type StaffDay struct {
	Weekday     int  `json:"weekday"`
	IsWorking   bool `json:"is_working"`
	StartMinute *int `json:"start_minute,omitempty"`
	EndMinute   *int `json:"end_minute,omitempty"`
}
