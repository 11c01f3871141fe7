package criteria

import (
	"github.com/actiongate/actiongate/service/dao"
)

// FilterByStage reports whether an entity in the given stage passes the
// supplied List parameters. With no parameters everything passes.
func FilterByStage(stage string, parameters []*dao.Parameter) bool {
	switch len(parameters) {
	case 0:
		return true
	case 1:
		if parameters[0].Name == "Stage" {
			switch actual := parameters[0].Value.(type) {
			case string:
				return stage == actual
			case []string:
				for _, s := range actual {
					if stage == s {
						return true
					}
				}
				return false
			}
		}
	}
	return true
}
