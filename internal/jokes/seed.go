package jokes

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

const seedJokesPerPair = 3

var (
	seedAuthors = []string{"Manolito", "Pepe", "Isabel", "Pedro"}
	seedTopics  = []string{"humor negro", "humor amarillo", "chistes verdes"}
)

// SeedSummary reports what a Seed run inserted.
type SeedSummary struct {
	Authors int
	Topics  int
	Jokes   int
}

// Seed inserts the sample authors, topics and jokes. It is safe to run on
// every start: existing names are reused and a (author, topic) pair that
// already has jokes is left alone.
func Seed(ctx context.Context, repo Repository, logger *logrus.Logger) (SeedSummary, error) {
	var summary SeedSummary
	if repo == nil {
		return summary, eris.New("jokes repository is required")
	}

	authors := make([]*Author, 0, len(seedAuthors))
	for _, name := range seedAuthors {
		author, created, err := repo.EnsureAuthor(ctx, name)
		if err != nil {
			return summary, eris.Wrapf(err, "seeding author %s", name)
		}
		if created {
			summary.Authors++
		}
		authors = append(authors, author)
	}

	topics := make([]*Topic, 0, len(seedTopics))
	for _, name := range seedTopics {
		topic, created, err := repo.EnsureTopic(ctx, name)
		if err != nil {
			return summary, eris.Wrapf(err, "seeding topic %s", name)
		}
		if created {
			summary.Topics++
		}
		topics = append(topics, topic)
	}

	for _, author := range authors {
		for _, topic := range topics {
			count, err := repo.CountJokes(ctx, author.ID, topic.ID)
			if err != nil {
				return summary, eris.Wrapf(err, "counting jokes for %s/%s", author.Name, topic.Name)
			}
			if count > 0 {
				continue
			}

			for i := 1; i <= seedJokesPerPair; i++ {
				joke := &Joke{
					Text:     fmt.Sprintf("%s chiste %d de %s", topic.Name, i, author.Name),
					AuthorID: author.ID,
					TopicID:  topic.ID,
				}
				if err := repo.CreateJoke(ctx, joke); err != nil {
					return summary, eris.Wrapf(err, "seeding joke for %s/%s", author.Name, topic.Name)
				}
				summary.Jokes++
			}
		}
	}

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"component": "jokes.seed",
			"authors":   summary.Authors,
			"topics":    summary.Topics,
			"jokes":     summary.Jokes,
		}).Info("database seed complete")
	}

	return summary, nil
}
