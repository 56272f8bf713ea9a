package facts

import (
	"context"

	"github.com/stevehiehn/deployspec/internal/deployment"
	"github.com/stevehiehn/deployspec/internal/params"
)

// Static derives facts from the deployment itself: its identity and where its
// artefacts live. Extra is merged over the derived values.
type Static struct {
	Store params.Store
	Extra Facts
}

func (s *Static) GetFacts(_ context.Context, d deployment.Details) (Facts, error) {
	f := Facts{
		"Client":          d.Client,
		"Portfolio":       d.Portfolio,
		"App":             d.App,
		"Branch":          d.Branch,
		"BranchShortName": d.BranchShortName(),
		"Build":           d.Build,
		"Environment":     d.Environment,
		"Scope":           string(d.Scope),

		"ArtifactBucketName":         s.Store.BucketName,
		"ArtifactBucketRegion":       s.Store.BucketRegion,
		"ArtifactKeyPrefix":          d.ArtefactsKey("", deployment.ScopeBuild),
		"ArtifactKeyBuildPrefix":     d.ArtefactsKey("", deployment.ScopeBuild),
		"ArtifactKeyBranchPrefix":    d.ArtefactsKey("", deployment.ScopeBranch),
		"ArtifactKeyAppPrefix":       d.ArtefactsKey("", deployment.ScopeApp),
		"ArtifactKeyPortfolioPrefix": d.ArtefactsKey("", deployment.ScopePortfolio),
		"ArtifactBaseUrl":            s.Store.Volume() + "/" + s.Store.BucketName + "/" + d.ArtefactsKey("", deployment.ScopeBuild),
	}
	if len(d.Tags) > 0 {
		tags := make(map[string]any, len(d.Tags))
		for k, v := range d.Tags {
			tags[k] = v
		}
		f["Tags"] = tags
	}
	return Merge(f, s.Extra)
}
