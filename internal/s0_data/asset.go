package s0_data

// Asset is one tracked company: its ticker, legal name and optional pseudonym
type Asset struct {
	Ticker    string `gorm:"primaryKey;column:ticker"`
	Name      string `gorm:"column:name;not null"`
	Pseudonym string `gorm:"column:pseudonym"`
}
