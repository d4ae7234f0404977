// Package scope restricts report queries to the rows a viewer may see.
// Superusers pass through untouched; everyone else is limited to machines
// they hold a grant on. Scoping is expressed as EXISTS semi-joins rather
// than inner joins: a fact row matching several grants, or a device bridged
// to several machines, must still count once. An explicit geography filter
// is applied here too, after filter.ExtractGeography has cleared it from
// the declarative filter.
package scope

import (
	"github.com/bwmarrin/snowflake"
	"github.com/vendwatch/vendwatch/internal/reporting/query"
	"github.com/vendwatch/vendwatch/internal/viewer"
)

// Join target names shared with the filter compiler so a table reached by
// more than one layer is joined exactly once.
const (
	JoinMachines           = "machines"
	JoinMachineUsers       = "machine_users"
	JoinMachineImpressions = "machine_impressions"
	JoinGeographies        = "geographies"
)

// Chain describes how one fact table reaches the viewer's grants. Each
// condition is a self-contained semi-join over the fact row.
type Chain struct {
	grantCond     string
	geographyCond string
	productCond   string
}

// Sales facts carry machine_id and product_id directly.
var Sales = Chain{
	grantCond:     "EXISTS (SELECT 1 FROM machine_users WHERE machine_users.machine_id = sales.machine_id AND machine_users.user_id = ?)",
	geographyCond: "EXISTS (SELECT 1 FROM machines WHERE machines.id = sales.machine_id AND machines.geography_id IN ?)",
	productCond:   "EXISTS (SELECT 1 FROM product_users WHERE product_users.product_id = sales.product_id AND product_users.user_id = ?)",
}

// Impressions facts carry only a device number; the path to machines goes
// through the machine_impressions bridge, and a device may be bridged to
// more than one machine. Impressions have no product linkage.
var Impressions = Chain{
	grantCond: "EXISTS (SELECT 1 FROM machine_impressions JOIN machine_users ON machine_users.machine_id = machine_impressions.machine_id" +
		" WHERE machine_impressions.impression_device_number = impressions.device_number AND machine_users.user_id = ?)",
	geographyCond: "EXISTS (SELECT 1 FROM machine_impressions JOIN machines ON machines.id = machine_impressions.machine_id" +
		" WHERE machine_impressions.impression_device_number = impressions.device_number AND machines.geography_id IN ?)",
}

// Apply scopes st for v and optionally restricts it to the given
// geographies. For a superuser with no geography filter the query is
// returned unmodified.
func (c Chain) Apply(st *query.State, v viewer.Viewer, geographyIDs []snowflake.ID) {
	if !v.Superuser {
		st.Where(c.grantCond, v.UserID)
	}
	if len(geographyIDs) > 0 {
		st.Where(c.geographyCond, geographyIDs)
	}
}

// ApplyProducts additionally intersects the query with the viewer's product
// grants. Only reports that expose product identity call this; a chain
// without a product linkage ignores it.
func (c Chain) ApplyProducts(st *query.State, v viewer.Viewer) {
	if v.Superuser || c.productCond == "" {
		return
	}
	st.Where(c.productCond, v.UserID)
}
