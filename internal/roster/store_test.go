package roster

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Add(t *testing.T) {
	tests := map[string]struct {
		name   string
		weight int
		wantOK bool
		assert func(t *testing.T, s *Store)
	}{
		"plain name": {
			name:   "Alice",
			weight: 1,
			wantOK: true,
			assert: func(t *testing.T, s *Store) {
				require.Equal(t, 1, s.Len())
				assert.Equal(t, "Alice", s.Snapshot()[0].Name)
			},
		},
		"surrounding whitespace is trimmed": {
			name:   "  Bob\t",
			weight: 1,
			wantOK: true,
			assert: func(t *testing.T, s *Store) {
				assert.Equal(t, "Bob", s.Snapshot()[0].Name)
			},
		},
		"blank name is a no-op": {
			name:   "   ",
			weight: 1,
			wantOK: false,
			assert: func(t *testing.T, s *Store) {
				assert.Equal(t, 0, s.Len())
			},
		},
		"non-positive weight coerced to 1": {
			name:   "Carol",
			weight: -3,
			wantOK: true,
			assert: func(t *testing.T, s *Store) {
				assert.Equal(t, 1, s.Snapshot()[0].Weight)
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			s := NewStore()
			_, ok := s.Add(tt.name, tt.weight)
			require.Equal(t, tt.wantOK, ok)
			tt.assert(t, s)
		})
	}
}

func TestStore_IDsAreUniqueAndIncreasing(t *testing.T) {
	s := NewStore()

	seen := make(map[int64]bool)
	var last int64
	for i := 0; i < 200; i++ {
		p, ok := s.Add("p", 1)
		require.True(t, ok)
		require.False(t, seen[p.ID], "id %d assigned twice", p.ID)
		require.Greater(t, p.ID, last)
		seen[p.ID] = true
		last = p.ID
	}
}

func TestStore_ExcludeToggleRestore(t *testing.T) {
	s := NewStore()
	a, _ := s.Add("a", 1)
	b, _ := s.Add("b", 1)

	require.True(t, s.ToggleExclude(a.ID))
	assert.Equal(t, 1, s.ActiveCount())
	assert.Equal(t, 1, s.ExcludedCount())

	require.True(t, s.ToggleExclude(a.ID))
	assert.Equal(t, 2, s.ActiveCount())

	assert.False(t, s.ToggleExclude(404), "unknown id is a no-op")

	s.Exclude(a.ID)
	s.Exclude(b.ID)
	assert.Equal(t, 0, s.ActiveCount())

	s.RestoreAll()
	assert.Equal(t, 2, s.ActiveCount())
}

func TestStore_RemoveAndReplace(t *testing.T) {
	s := NewStore()
	a, _ := s.Add("a", 1)
	s.Add("b", 1)

	require.True(t, s.Remove(a.ID))
	assert.False(t, s.Remove(a.ID))
	assert.Equal(t, 1, s.Len())

	snap := s.Snapshot()
	s.ClearAll()
	assert.Equal(t, 0, s.Len())

	s.Replace(snap)
	require.Equal(t, 1, s.Len())

	// Fresh ids keep growing past the restored ones.
	p, _ := s.Add("c", 1)
	assert.Greater(t, p.ID, snap[0].ID)
}

func TestStore_Search(t *testing.T) {
	s := NewStore()
	s.Add("张伟", 1)
	s.Add("李娜", 1)
	s.Add("Zhang San", 1)

	assert.Len(t, s.Search(""), 3)
	assert.Len(t, s.Search("zhang"), 1)
	assert.Len(t, s.Search("张"), 1)
	assert.Empty(t, s.Search("nobody"))
}

func TestParseImport(t *testing.T) {
	tests := map[string]struct {
		data    string
		want    []ImportEntry
		wantErr bool
	}{
		"json array": {
			data: `[{"name":"Alice","weight":2},{"name":"Bob","excluded":true}]`,
			want: []ImportEntry{
				{Name: "Alice", Weight: 2},
				{Name: "Bob", Excluded: true},
			},
		},
		"malformed json array": {
			data:    `[{"name":`,
			wantErr: true,
		},
		"comma separated with header": {
			data: "姓名,weight\n张伟,3\n李娜\n",
			want: []ImportEntry{
				{Name: "张伟", Weight: 3},
				{Name: "李娜", Weight: 1},
			},
		},
		"whitespace separated, blank lines skipped": {
			data: "name\n\nAlice 2\n\tBob\t5\n",
			want: []ImportEntry{
				{Name: "Alice", Weight: 2},
				{Name: "Bob", Weight: 5},
			},
		},
		"junk weight column falls back to 1": {
			data: "Alice,heavy\n",
			want: []ImportEntry{{Name: "Alice", Weight: 1}},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			got, err := ParseImport([]byte(tt.data))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStore_BulkImport(t *testing.T) {
	s := NewStore()
	s.Add("Alice", 1)

	rep := s.BulkImport([]ImportEntry{
		{Name: "alice", Weight: 1},  // dup of the existing entry
		{Name: "Bob", Weight: 2},
		{Name: " Bob ", Weight: 1}, // dup within the batch
		{Name: "   "},              // dropped
		{Name: "Carol", Weight: 0}, // weight coerced
	})

	assert.Equal(t, 4, rep.Added, "duplicates are imported anyway")
	assert.Equal(t, 2, rep.Duplicates)
	assert.Equal(t, 1, rep.Skipped)
	assert.Equal(t, 5, s.Len())

	for _, p := range s.Snapshot() {
		if strings.EqualFold(p.Name, "carol") {
			assert.Equal(t, 1, p.Weight)
		}
	}
}
