package jokes

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"chistes/app/internal/apperror"
)

// Repository defines persistence operations for authors, topics and jokes.
// Point reads return nil, nil when the row does not exist. Writes report the
// number of rows affected.
type Repository interface {
	GetAuthor(ctx context.Context, id int64) (*Author, error)
	GetTopic(ctx context.Context, id int64) (*Topic, error)
	GetJoke(ctx context.Context, id int64) (*Joke, error)
	ListAuthors(ctx context.Context) ([]Author, error)
	ListTopics(ctx context.Context) ([]Topic, error)
	ListJokes(ctx context.Context) ([]Joke, error)
	ListJokesByTopicKeywords(ctx context.Context, keywords []string) ([]Joke, error)
	SearchJokes(ctx context.Context, filter Filter) ([]JokeView, error)
	EnsureAuthor(ctx context.Context, name string) (*Author, bool, error)
	EnsureTopic(ctx context.Context, name string) (*Topic, bool, error)
	CountJokes(ctx context.Context, authorID, topicID int64) (int64, error)
	CreateJoke(ctx context.Context, joke *Joke) error
	UpdateJokeText(ctx context.Context, id int64, text string) (int64, error)
	DeleteJoke(ctx context.Context, id int64) (int64, error)
}

// GormRepository persists jokes using a Gorm database connection opened
// with TranslateError so constraint failures surface as gorm sentinels.
type GormRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewRepository constructs a Gorm-backed repository implementation.
func NewRepository(db *gorm.DB, logger *logrus.Logger) (*GormRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormRepository{db: db, logger: logger}, nil
}

var _ Repository = (*GormRepository)(nil)

func (r *GormRepository) GetAuthor(ctx context.Context, id int64) (*Author, error) {
	var author Author
	if err := r.db.WithContext(ctx).First(&author, id).Error; err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, r.storageError(logrus.Fields{"usuario_id": id}, err, "fetching author")
	}
	return &author, nil
}

func (r *GormRepository) GetTopic(ctx context.Context, id int64) (*Topic, error) {
	var topic Topic
	if err := r.db.WithContext(ctx).First(&topic, id).Error; err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, r.storageError(logrus.Fields{"tematica_id": id}, err, "fetching topic")
	}
	return &topic, nil
}

func (r *GormRepository) GetJoke(ctx context.Context, id int64) (*Joke, error) {
	var joke Joke
	if err := r.db.WithContext(ctx).First(&joke, id).Error; err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, r.storageError(logrus.Fields{"chiste_id": id}, err, "fetching joke")
	}
	return &joke, nil
}

// ListAuthors returns every author ordered by id.
func (r *GormRepository) ListAuthors(ctx context.Context) ([]Author, error) {
	var authors []Author
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&authors).Error; err != nil {
		return nil, r.storageError(nil, err, "listing authors")
	}
	return authors, nil
}

// ListTopics returns every topic ordered by id.
func (r *GormRepository) ListTopics(ctx context.Context) ([]Topic, error) {
	var topics []Topic
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&topics).Error; err != nil {
		return nil, r.storageError(nil, err, "listing topics")
	}
	return topics, nil
}

// ListJokes returns every joke ordered by id.
func (r *GormRepository) ListJokes(ctx context.Context) ([]Joke, error) {
	var jokes []Joke
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&jokes).Error; err != nil {
		return nil, r.storageError(nil, err, "listing jokes")
	}
	return jokes, nil
}

// ListJokesByTopicKeywords returns jokes whose topic name contains any of the
// keywords, compared case-insensitively.
func (r *GormRepository) ListJokesByTopicKeywords(ctx context.Context, keywords []string) ([]Joke, error) {
	clauses := make([]string, 0, len(keywords))
	args := make([]any, 0, len(keywords))
	for _, keyword := range keywords {
		trimmed := strings.ToLower(strings.TrimSpace(keyword))
		if trimmed == "" {
			continue
		}
		clauses = append(clauses, "LOWER(nombre) LIKE ?")
		args = append(args, "%"+trimmed+"%")
	}
	if len(clauses) == 0 {
		return nil, nil
	}

	topicIDs := r.db.Model(&Topic{}).Select("id").Where(strings.Join(clauses, " OR "), args...)

	var jokes []Joke
	err := r.db.WithContext(ctx).
		Where("tematica_id IN (?)", topicIDs).
		Order("id ASC").
		Find(&jokes).Error
	if err != nil {
		return nil, r.storageError(logrus.Fields{"keywords": keywords}, err, "listing jokes by topic keywords")
	}
	return jokes, nil
}

// SearchJokes joins jokes with author and topic names, filtered by the
// non-empty fields of filter.
func (r *GormRepository) SearchJokes(ctx context.Context, filter Filter) ([]JokeView, error) {
	query := r.db.WithContext(ctx).
		Table("chistes AS c").
		Select("c.texto AS texto, u.nombre AS autor, t.nombre AS tematica").
		Joins("JOIN usuarios u ON c.usuario_id = u.id").
		Joins("JOIN tematicas t ON c.tematica_id = t.id")

	if name := strings.TrimSpace(filter.AuthorName); name != "" {
		query = query.Where("u.nombre = ?", name)
	}
	if name := strings.TrimSpace(filter.TopicName); name != "" {
		query = query.Where("t.nombre = ?", name)
	}

	views := make([]JokeView, 0)
	if err := query.Order("c.id ASC").Scan(&views).Error; err != nil {
		return nil, r.storageError(logrus.Fields{"autor": filter.AuthorName, "tematica": filter.TopicName}, err, "searching jokes")
	}
	return views, nil
}

// EnsureAuthor returns the author with the given name, inserting it when
// missing. The bool reports whether a row was created.
func (r *GormRepository) EnsureAuthor(ctx context.Context, name string) (*Author, bool, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, false, eris.New("author name is required")
	}

	author := Author{}
	result := r.db.WithContext(ctx).Where(Author{Name: trimmed}).FirstOrCreate(&author)
	if result.Error != nil {
		return nil, false, r.storageError(logrus.Fields{"nombre": trimmed}, result.Error, "ensuring author")
	}
	return &author, result.RowsAffected > 0, nil
}

// EnsureTopic returns the topic with the given name, inserting it when
// missing. The bool reports whether a row was created.
func (r *GormRepository) EnsureTopic(ctx context.Context, name string) (*Topic, bool, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, false, eris.New("topic name is required")
	}

	topic := Topic{}
	result := r.db.WithContext(ctx).Where(Topic{Name: trimmed}).FirstOrCreate(&topic)
	if result.Error != nil {
		return nil, false, r.storageError(logrus.Fields{"nombre": trimmed}, result.Error, "ensuring topic")
	}
	return &topic, result.RowsAffected > 0, nil
}

func (r *GormRepository) CountJokes(ctx context.Context, authorID, topicID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Joke{}).
		Where("usuario_id = ? AND tematica_id = ?", authorID, topicID).
		Count(&count).Error
	if err != nil {
		return 0, r.storageError(logrus.Fields{"usuario_id": authorID, "tematica_id": topicID}, err, "counting jokes")
	}
	return count, nil
}

// CreateJoke inserts joke and sets its generated ID.
func (r *GormRepository) CreateJoke(ctx context.Context, joke *Joke) error {
	if joke == nil {
		return eris.New("joke is nil")
	}

	if err := r.db.WithContext(ctx).Omit("Author", "Topic").Create(joke).Error; err != nil {
		return r.storageError(logrus.Fields{"usuario_id": joke.AuthorID, "tematica_id": joke.TopicID}, err, "creating joke")
	}
	return nil
}

func (r *GormRepository) UpdateJokeText(ctx context.Context, id int64, text string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&Joke{}).Where("id = ?", id).Update("texto", text)
	if result.Error != nil {
		return 0, r.storageError(logrus.Fields{"chiste_id": id}, result.Error, "updating joke text")
	}
	return result.RowsAffected, nil
}

func (r *GormRepository) DeleteJoke(ctx context.Context, id int64) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&Joke{}, id)
	if result.Error != nil {
		return 0, r.storageError(logrus.Fields{"chiste_id": id}, result.Error, "deleting joke")
	}
	return result.RowsAffected, nil
}

// storageError logs err and classifies it so callers never inspect driver
// messages.
func (r *GormRepository) storageError(fields logrus.Fields, err error, message string) error {
	if r.logger != nil {
		entry := r.logger.WithFields(logrus.Fields{"component": "jokes.repository", "error": err.Error()})
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	wrapped := eris.Wrap(err, message)

	switch {
	case eris.Is(err, context.DeadlineExceeded):
		return apperror.Timeout("Timeout de la operación", "La operación de base de datos tardó demasiado").WithCause(wrapped)
	case eris.Is(err, context.Canceled):
		return apperror.New(apperror.KindCanceled, "Solicitud cancelada", "El cliente canceló la solicitud").WithCause(wrapped)
	case eris.Is(err, gorm.ErrDuplicatedKey):
		return apperror.Conflict("Registro duplicado", "Ya existe un registro idéntico en la base de datos").
			With("sugerencia", "Modifique los datos enviados").
			WithCause(wrapped)
	case eris.Is(err, gorm.ErrForeignKeyViolated):
		return apperror.Validation("Referencia inválida", "El usuario o temática especificada no existe").
			With("sugerencia", "Verifique los IDs proporcionados").
			WithCause(wrapped)
	default:
		return apperror.Unavailable("Error de base de datos", "No se pudo completar la operación en la base de datos").
			With("sugerencia", "Intente nuevamente más tarde").
			WithCause(wrapped)
	}
}
