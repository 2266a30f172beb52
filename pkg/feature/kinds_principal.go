package feature

import "stratum/pkg/item"

// User declares a new system user, modeled after a single /etc/passwd
// entry plus the home directory it is conventionally given.
type User struct {
	Name                string   `json:"name"`
	HomeDir             string   `json:"home_dir"`
	Shell               string   `json:"shell"`
	UID                 *uint32  `json:"uid,omitempty"`
	PrimaryGroup        string   `json:"primary_group"`
	SupplementaryGroups []string `json:"supplementary_groups,omitempty"`
}

func (f User) provides() ([]item.Item, error) {
	return []item.Item{item.User(f.Name)}, nil
}

func (f User) requires() []item.Requirement {
	reqs := []item.Requirement{
		item.Ordered(item.PathKey("/etc/passwd"), item.Exists()),
		item.Ordered(item.PathKey("/etc/group"), item.Exists()),
		item.Ordered(item.GroupKey(f.PrimaryGroup), item.Exists()),
	}
	for _, g := range f.SupplementaryGroups {
		reqs = append(reqs, item.Ordered(item.GroupKey(g), item.Exists()))
	}
	reqs = append(reqs,
		item.Unordered(item.PathKey(f.HomeDir), item.HasFileType(item.FileTypeDirectory)),
		item.Unordered(item.PathKey(f.Shell), item.Executable()),
	)
	return reqs
}

// Group declares a new system group, modeled after a single /etc/group
// entry.
type Group struct {
	Name string  `json:"name"`
	GID  *uint32 `json:"gid,omitempty"`
}

func (f Group) provides() ([]item.Item, error) {
	return []item.Item{item.Group(f.Name)}, nil
}

func (f Group) requires() []item.Requirement { return nil }

// UserMod adds an existing user to additional supplementary groups. It
// modifies a principal declared elsewhere rather than declaring a new one,
// so it provides nothing of its own.
type UserMod struct {
	Username            string   `json:"username"`
	AddSupplementaryGroups []string `json:"add_supplementary_groups,omitempty"`
}

func (f UserMod) provides() ([]item.Item, error) { return nil, nil }

func (f UserMod) requires() []item.Requirement {
	reqs := []item.Requirement{
		item.Ordered(item.UserKey(f.Username), item.Exists()),
	}
	for _, g := range f.AddSupplementaryGroups {
		reqs = append(reqs, item.Ordered(item.GroupKey(g), item.Exists()))
	}
	return reqs
}
