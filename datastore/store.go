package datastore

import "database/sql"

// Store bundles the repositories sharing one database handle.
type Store struct {
	Users    *UserRepository
	Posts    *PostRepository
	Projects *ProjectRepository
	Chapters *ChapterRepository
	Items    *ProjectPostRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		Users:    NewUserRepository(db),
		Posts:    NewPostRepository(db),
		Projects: NewProjectRepository(db),
		Chapters: NewChapterRepository(db),
		Items:    NewProjectPostRepository(db),
	}
}

// ContentReader is the read view the document assembler consumes.
type ContentReader struct {
	*ProjectRepository
	*ChapterRepository
	*ProjectPostRepository
}

func (s *Store) ContentReader() ContentReader {
	return ContentReader{s.Projects, s.Chapters, s.Items}
}
