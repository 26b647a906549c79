package entities

// DiaryEntry is one diary record: a title/content pair and the moment it was written.
type DiaryEntry struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Title     string    `gorm:"column:title;type:text;not null" json:"title"`
	Content   string    `gorm:"column:content;type:text;not null" json:"content"`
	CreatedAt Timestamp `gorm:"column:created_at;type:text;autoCreateTime:false" json:"created_at"`
}

func (DiaryEntry) TableName() string {
	return "diary_entries"
}

// DateKey returns the calendar day (YYYY-MM-DD, UTC) the entry belongs to.
func (e DiaryEntry) DateKey() string {
	return e.CreatedAt.DateKey()
}
