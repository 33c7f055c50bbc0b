package inquiry

import (
	"github.com/sohosai/sos26-sub000/domain/apperr"
	"github.com/sohosai/sos26-sub000/domain/model"
)

const maxViewers = 50

// MatchViewers は登録順に閲覧者ルールを見て、最初に一致したところで true を返す
func MatchViewers(viewers []model.Viewer, userID string, bureau model.Bureau) bool {
	for _, v := range viewers {
		switch v.Scope {
		case model.ViewerScopeAll:
			return true
		case model.ViewerScopeBureau:
			if bureau != "" && model.Bureau(v.BureauValue) == bureau {
				return true
			}
		case model.ViewerScopeIndividual:
			if userID != "" && v.UserID == userID {
				return true
			}
		}
	}
	return false
}

// ValidateViewers は置き換え後の閲覧者ルール一式を検証する
func ValidateViewers(viewers []model.Viewer) error {
	if len(viewers) > maxViewers {
		return apperr.InvalidRequest("too many viewers: %d (max %d)", len(viewers), maxViewers)
	}
	seen := map[string]bool{}
	for i, v := range viewers {
		var target string
		switch v.Scope {
		case model.ViewerScopeAll:
			if v.BureauValue != "" || v.UserID != "" {
				return apperr.InvalidRequest("viewers[%d]: ALL takes neither bureau nor user", i)
			}
		case model.ViewerScopeBureau:
			if v.UserID != "" {
				return apperr.InvalidRequest("viewers[%d]: BUREAU takes no user", i)
			}
			if !model.Bureau(v.BureauValue).Valid() {
				return apperr.InvalidRequest("viewers[%d]: unknown bureau %q", i, v.BureauValue)
			}
			target = v.BureauValue
		case model.ViewerScopeIndividual:
			if v.BureauValue != "" {
				return apperr.InvalidRequest("viewers[%d]: INDIVIDUAL takes no bureau", i)
			}
			if v.UserID == "" {
				return apperr.InvalidRequest("viewers[%d]: INDIVIDUAL requires a user", i)
			}
			target = v.UserID
		default:
			return apperr.InvalidRequest("viewers[%d]: unknown scope %q", i, v.Scope)
		}
		k := string(v.Scope) + "/" + target
		if seen[k] {
			return apperr.InvalidRequest("viewers[%d]: duplicated rule %s", i, k)
		}
		seen[k] = true
	}
	return nil
}
