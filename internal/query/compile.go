package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/GodspeedAgent/dpd-dispatch/internal/dataset"
	"github.com/GodspeedAgent/dpd-dispatch/internal/logger"
)

// Default field names used when no dataset profile is supplied.
const (
	defaultBeatField     = "beat"
	defaultDivisionField = "division"
	defaultLocationField = "geocoded_column"
)

// Fixed field names for the offense coding schemes on historical records.
const (
	fieldNIBRS              = "nibrs"
	fieldNIBRSType          = "nibrs_type"
	fieldNIBRSCrime         = "nibrs_crime"
	fieldNIBRSCrimeCategory = "nibrs_crime_category"
	fieldNIBRSCode          = "nibrs_code"
	fieldUCROffense         = "ucr_offense"
	fieldOffenseIncident    = "offincident"
)

// Oracle resolves a semantic offense category tag into the literal offense
// strings the backend stores. A nil oracle resolves every tag to nothing;
// so does an unknown tag. Either way the dimension is dropped, never an
// error.
type Oracle interface {
	OffensesFor(tag string) []string
}

// Params is the compiled SODA parameter set for one query.
type Params struct {
	Limit    int
	Offset   int
	Where    string
	Order    string
	Select   string
	FullText string
}

// Encode renders the parameters as SODA query-string values.
func (p Params) Encode() url.Values {
	values := url.Values{}
	values.Set("$limit", strconv.Itoa(p.Limit))
	values.Set("$offset", strconv.Itoa(p.Offset))
	if p.Where != "" {
		values.Set("$where", p.Where)
	}
	if p.Order != "" {
		values.Set("$order", p.Order)
	}
	if p.Select != "" {
		values.Set("$select", p.Select)
	}
	if p.FullText != "" {
		values.Set("$q", p.FullText)
	}
	return values
}

// Compiler renders a Query into SODA parameters using a dataset profile's
// field mappings. A nil profile falls back to hardcoded default field names
// and skips the date dimension entirely.
type Compiler struct {
	profile *dataset.Profile
	oracle  Oracle
	log     logger.Logger
}

// NewCompiler creates a compiler for one dataset profile. Both profile and
// oracle may be nil.
func NewCompiler(profile *dataset.Profile, oracle Oracle, log logger.Logger) *Compiler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Compiler{
		profile: profile,
		oracle:  oracle,
		log:     log,
	}
}

// Compile renders the query. Clause emission order is fixed: beats,
// division, date, NIBRS family, UCR, offense category, offense keyword,
// geo, raw passthrough. Dimensions whose source field is absent or
// unmapped contribute no clause.
func (c *Compiler) Compile(q *Query) Params {
	var clauses []string

	appendClause := func(clause string) {
		if clause != "" {
			clauses = append(clauses, clause)
		}
	}

	appendClause(c.beatsClause(q))
	appendClause(c.divisionClause(q))
	appendClause(c.dateClause(q))
	appendClause(inClause(fieldNIBRS, q.NIBRSCodes))
	appendClause(equalityClause(fieldNIBRSType, q.NIBRSType))
	appendClause(equalityClause(fieldNIBRSCrime, q.NIBRSCrime))
	appendClause(equalityClause(fieldNIBRSCrimeCategory, q.NIBRSCrimeCategory))
	appendClause(equalityClause(fieldNIBRSCode, q.NIBRSCode))
	appendClause(equalityClause(fieldUCROffense, q.UCROffense))
	appendClause(c.categoryClause(q))
	appendClause(keywordClause(q.OffenseKeyword))
	appendClause(c.geoClause(q))
	if q.ExtraWhere != "" {
		appendClause("(" + q.ExtraWhere + ")")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	return Params{
		Limit:    limit,
		Offset:   q.Offset,
		Where:    strings.Join(clauses, " AND "),
		Order:    q.OrderBy,
		Select:   strings.Join(q.SelectFields, ", "),
		FullText: q.FullText,
	}
}

func (c *Compiler) beatsClause(q *Query) string {
	field := defaultBeatField
	if c.profile != nil && c.profile.BeatField != "" {
		field = c.profile.BeatField
	}
	return inClause(field, q.Beats)
}

// divisionClause is emitted only when the resolved division field is
// non-empty; the active-calls presets map it to absent.
func (c *Compiler) divisionClause(q *Query) string {
	if q.Division == "" {
		return ""
	}

	field := defaultDivisionField
	if c.profile != nil {
		field = c.profile.DivisionField
	}
	if field == "" {
		c.log.Debug("division filter dropped, dataset has no division field",
			logger.String("division", q.Division))
		return ""
	}
	return equalityClause(field, q.Division)
}

// dateClause requires a profile with a datetime field; without one the
// date dimension is silently skipped. Whole days are inclusive on both
// ends.
func (c *Compiler) dateClause(q *Query) string {
	if q.DateRange == nil {
		return ""
	}
	if c.profile == nil || c.profile.DatetimeField == "" {
		c.log.Debug("date filter dropped, dataset has no datetime field")
		return ""
	}

	field := c.profile.DatetimeField
	var parts []string
	if !q.DateRange.Start.IsZero() {
		parts = append(parts, fmt.Sprintf("%s >= '%s'", field, q.DateRange.startLiteral()))
	}
	if !q.DateRange.End.IsZero() {
		parts = append(parts, fmt.Sprintf("%s <= '%s'", field, q.DateRange.endLiteral()))
	}
	return strings.Join(parts, " AND ")
}

// categoryClause resolves the semantic tag through the oracle into an
// OR-group of equality clauses. Unknown tags and nil oracles resolve to
// nothing.
func (c *Compiler) categoryClause(q *Query) string {
	if q.OffenseCategory == "" {
		return ""
	}
	if c.oracle == nil {
		c.log.Debug("offense category filter dropped, no oracle configured",
			logger.String("category", q.OffenseCategory))
		return ""
	}

	offenses := c.oracle.OffensesFor(q.OffenseCategory)
	if len(offenses) == 0 {
		c.log.Debug("offense category filter dropped, tag resolved to nothing",
			logger.String("category", q.OffenseCategory))
		return ""
	}

	parts := make([]string, len(offenses))
	for i, offense := range offenses {
		parts[i] = equalityClause(fieldOffenseIncident, offense)
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func keywordClause(keyword string) string {
	if keyword == "" {
		return ""
	}

	kw := escapeLiteral(strings.ToUpper(keyword))
	return fmt.Sprintf("(upper(%s) LIKE '%%%s%%' OR upper(%s) LIKE '%%%s%%')",
		fieldOffenseIncident, kw, fieldUCROffense, kw)
}

func (c *Compiler) geoClause(q *Query) string {
	if !q.Geo.Complete() {
		if q.Geo != nil {
			c.log.Debug("geo filter dropped, incomplete latitude/longitude/radius triple")
		}
		return ""
	}

	field := defaultLocationField
	if c.profile != nil && c.profile.LocationField != "" {
		field = c.profile.LocationField
	}
	return fmt.Sprintf("within_circle(%s, %s, %s, %s)",
		field,
		formatCoord(q.Geo.Latitude),
		formatCoord(q.Geo.Longitude),
		formatCoord(q.Geo.Radius))
}

func inClause(field string, values []string) string {
	if len(values) == 0 {
		return ""
	}

	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + escapeLiteral(v) + "'"
	}
	return fmt.Sprintf("%s IN (%s)", field, strings.Join(quoted, ", "))
}

func equalityClause(field, value string) string {
	if value == "" {
		return ""
	}
	return fmt.Sprintf("%s = '%s'", field, escapeLiteral(value))
}

// escapeLiteral doubles single quotes per SoQL string-literal rules.
func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
