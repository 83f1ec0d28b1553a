package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"trainingdesk/internal/utils"
	"trainingdesk/pkg/types"
)

// KeyParts is everything an object key encodes. BuildKey and ParseKey are
// inverses of each other.
type KeyParts struct {
	OwnerKind types.OwnerKind
	Owner     string // owner folder, see OwnerFolder
	Category  types.DocumentCategory
	Timestamp time.Time
	Nonce     string
	FileName  string
}

// OwnerFolder names the folder of one owner: the slug of their name joined
// to their id with "_", or the id alone when the name has no usable
// characters. Slugs never contain "_", so two owners never share a folder
// even when their names match.
func OwnerFolder(name, ownerID string) string {
	slug := utils.Slugify(name)
	if slug == "" {
		return ownerID
	}
	return slug + "_" + ownerID
}

// OwnerPrefix is the folder holding every object of one owner, with a
// trailing slash so "jane" never matches "jane-doe".
func OwnerPrefix(kind types.OwnerKind, ownerFolder string) string {
	return kind.Folder() + "/" + ownerFolder + "/"
}

// BuildKey lays out <kind folder>/<owner>/<category>/<unix ms>-<nonce>-<file>.
func BuildKey(p KeyParts) string {
	return fmt.Sprintf("%s%s/%d-%s-%s",
		OwnerPrefix(p.OwnerKind, p.Owner),
		strings.ToLower(string(p.Category)),
		p.Timestamp.UnixMilli(),
		p.Nonce,
		p.FileName,
	)
}

// ParseKey recovers the parts of a key produced by BuildKey.
func ParseKey(key string) (KeyParts, error) {
	segments := strings.Split(key, "/")
	if len(segments) != 4 {
		return KeyParts{}, fmt.Errorf("storage key %q: expected 4 segments, got %d", key, len(segments))
	}

	kind, ok := types.OwnerKindFromFolder(segments[0])
	if !ok {
		return KeyParts{}, fmt.Errorf("storage key %q: unknown owner folder %q", key, segments[0])
	}

	category := types.DocumentCategory(strings.ToUpper(segments[2]))
	if !category.Valid() {
		return KeyParts{}, fmt.Errorf("storage key %q: unknown category %q", key, segments[2])
	}

	name := strings.SplitN(segments[3], "-", 3)
	if len(name) != 3 {
		return KeyParts{}, fmt.Errorf("storage key %q: malformed file segment", key)
	}

	ms, err := strconv.ParseInt(name[0], 10, 64)
	if err != nil {
		return KeyParts{}, fmt.Errorf("storage key %q: bad timestamp: %w", key, err)
	}

	return KeyParts{
		OwnerKind: kind,
		Owner:     segments[1],
		Category:  category,
		Timestamp: time.UnixMilli(ms).UTC(),
		Nonce:     name[1],
		FileName:  name[2],
	}, nil
}

// DeriveKey builds a fresh key for an upload. The millisecond timestamp
// plus random nonce means a key is never handed out twice.
func (s *Synchronizer) DeriveKey(kind types.OwnerKind, ownerFolder string, category types.DocumentCategory, filename string) string {
	return BuildKey(KeyParts{
		OwnerKind: kind,
		Owner:     ownerFolder,
		Category:  category,
		Timestamp: s.now(),
		Nonce:     utils.KeySuffix(),
		FileName:  utils.SanitizeFilename(filename),
	})
}

// RebaseKey moves key from oldPrefix to newPrefix. ok is false when key does
// not live under oldPrefix.
func RebaseKey(key, oldPrefix, newPrefix string) (string, bool) {
	if !strings.HasPrefix(key, oldPrefix) {
		return key, false
	}
	return newPrefix + strings.TrimPrefix(key, oldPrefix), true
}
