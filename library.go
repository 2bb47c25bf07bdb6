package pngpal

import (
	"crypto/sha1"
	"database/sql"
	"fmt"

	"github.com/bodgit/pngpal/indexed"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Library is a SQLite catalogue of palettes.
type Library struct {
	db     *sql.DB
	logger *zap.Logger
}

// Entry is a palette stored in a Library.
type Entry struct {
	ID           int64
	Name         string
	SHA1         string
	Colors       []indexed.RGB
	Transparency []uint8
	// Number of image files known to use the palette
	Sources int
}

// OpenLibrary opens or creates the library database in file.
func OpenLibrary(file string, logger *zap.Logger) (*Library, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_foreign_keys=on&_busy_timeout=5000", file))
	if err != nil {
		return nil, err
	}
	// Writers are serialized by SQLite anyway
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"CREATE TABLE IF NOT EXISTS palette (id INTEGER PRIMARY KEY NOT NULL, sha1 TEXT NOT NULL UNIQUE, colors BLOB NOT NULL, transparency BLOB NOT NULL)",
		"CREATE TABLE IF NOT EXISTS name (palette_id INTEGER NOT NULL, name TEXT NOT NULL UNIQUE, FOREIGN KEY(palette_id) REFERENCES palette(id))",
		"CREATE TABLE IF NOT EXISTS source (palette_id INTEGER NOT NULL, path TEXT NOT NULL UNIQUE, FOREIGN KEY(palette_id) REFERENCES palette(id))",
	} {
		if _, err = db.Exec(stmt); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &Library{
		db:     db,
		logger: logger,
	}, nil
}

// Close closes the database.
func (l *Library) Close() error {
	return l.db.Close()
}

func encodeColors(colors []indexed.RGB) []byte {
	b := make([]byte, 0, 3*len(colors))
	for _, c := range colors {
		b = append(b, c.R, c.G, c.B)
	}
	return b
}

func decodeColors(b []byte) []indexed.RGB {
	colors := make([]indexed.RGB, 0, len(b)/3)
	for i := 0; i+2 < len(b); i += 3 {
		colors = append(colors, indexed.RGB{R: b[i], G: b[i+1], B: b[i+2]})
	}
	return colors
}

func paletteSHA1(colors, trns []byte) string {
	h := sha1.New()
	h.Write(colors)
	// Separates the two tables so their boundary is part of the hash
	h.Write([]byte{0xff, byte(len(trns))})
	h.Write(trns)
	return fmt.Sprintf("%X", h.Sum(nil))
}

// AddPalette stores a palette, unless an identical one is already stored,
// and returns its id.
func (l *Library) AddPalette(colors []indexed.RGB, trns []uint8) (int64, error) {
	if len(colors) == 0 || len(colors) > indexed.MaxColors {
		return 0, fmt.Errorf("invalid palette of %d colors", len(colors))
	}
	if len(trns) > len(colors) {
		return 0, fmt.Errorf("%w: %d > %d", indexed.ErrTransparencyLength, len(trns), len(colors))
	}

	b := encodeColors(colors)
	sha := paletteSHA1(b, trns)
	if trns == nil {
		trns = []uint8{}
	}

	if _, err := l.db.Exec("INSERT OR IGNORE INTO palette (sha1, colors, transparency) VALUES (?, ?, ?)", sha, b, trns); err != nil {
		return 0, err
	}

	var id int64
	if err := l.db.QueryRow("SELECT id FROM palette WHERE sha1 = ?", sha).Scan(&id); err != nil {
		return 0, err
	}

	l.logger.Debug("stored palette", zap.Int64("id", id), zap.String("sha1", sha), zap.Int("colors", len(colors)))

	return id, nil
}

// SetName names palette id, moving the name if another palette had it.
func (l *Library) SetName(id int64, name string) error {
	if _, err := l.db.Exec("INSERT OR REPLACE INTO name (palette_id, name) VALUES (?, ?)", id, name); err != nil {
		return err
	}
	return nil
}

// AddSource records that the image at path uses palette id.
func (l *Library) AddSource(id int64, path string) error {
	if _, err := l.db.Exec("INSERT OR REPLACE INTO source (palette_id, path) VALUES (?, ?)", id, path); err != nil {
		return err
	}
	return nil
}

const entryQuery = `SELECT p.id, COALESCE(MIN(n.name), ''), p.sha1, p.colors, p.transparency, (SELECT COUNT(*) FROM source AS s WHERE s.palette_id = p.id)
FROM palette AS p LEFT JOIN name AS n ON n.palette_id = p.id`

type scanner interface {
	Scan(...interface{}) error
}

func scanEntry(row scanner) (*Entry, error) {
	var e Entry
	var colors, trns []byte
	if err := row.Scan(&e.ID, &e.Name, &e.SHA1, &colors, &trns, &e.Sources); err != nil {
		return nil, err
	}
	e.Colors = decodeColors(colors)
	e.Transparency = append([]uint8{}, trns...)
	return &e, nil
}

// FindByName returns the palette with the given name, or nil if there is
// none.
func (l *Library) FindByName(name string) (*Entry, error) {
	row := l.db.QueryRow(entryQuery+" WHERE p.id = (SELECT palette_id FROM name WHERE name = ?) GROUP BY p.id", name)
	switch e, err := scanEntry(row); err {
	case sql.ErrNoRows:
		return nil, nil
	case nil:
		e.Name = name
		return e, nil
	default:
		return nil, err
	}
}

// Entries returns every stored palette ordered by id.
func (l *Library) Entries() ([]Entry, error) {
	rows, err := l.db.Query(entryQuery + " GROUP BY p.id ORDER BY p.id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}

	return entries, rows.Err()
}
