package jokes

// Author is a joke author. Rows are created by seeding and never edited.
type Author struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"column:nombre;size:255;not null;uniqueIndex:idx_usuarios_nombre"`
}

// TableName defines the table name for the Author model.
func (Author) TableName() string {
	return "usuarios"
}

// Topic classifies jokes, e.g. "humor negro".
type Topic struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"column:nombre;size:255;not null;uniqueIndex:idx_tematicas_nombre"`
}

// TableName defines the table name for the Topic model.
func (Topic) TableName() string {
	return "tematicas"
}

// Joke is a persisted joke. AuthorID and TopicID must reference existing rows.
type Joke struct {
	ID       int64   `gorm:"primaryKey;autoIncrement"`
	Text     string  `gorm:"column:texto;type:text;not null"`
	AuthorID int64   `gorm:"column:usuario_id;not null;index"`
	TopicID  int64   `gorm:"column:tematica_id;not null;index"`
	Author   *Author `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Topic    *Topic  `gorm:"foreignKey:TopicID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName defines the table name for the Joke model.
func (Joke) TableName() string {
	return "chistes"
}

// JokeView is a joke joined with its author and topic names.
type JokeView struct {
	Text   string `gorm:"column:texto"`
	Author string `gorm:"column:autor"`
	Topic  string `gorm:"column:tematica"`
}

// Filter narrows SearchJokes by exact author and topic names. Empty fields
// match everything.
type Filter struct {
	AuthorName string
	TopicName  string
}
