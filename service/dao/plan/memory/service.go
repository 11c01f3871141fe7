package memory

import (
	"github.com/actiongate/actiongate/model/plan"
	"github.com/actiongate/actiongate/service/dao"
	"github.com/actiongate/actiongate/service/dao/store"
)

func planKey(p *plan.Plan) string { return p.ID }

// New creates an in-memory plan artifact store.
func New() dao.Service[string, plan.Plan] {
	return store.NewMemoryStore[string, plan.Plan](planKey)
}
