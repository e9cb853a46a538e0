package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const scratchJobConfig = `<?xml version='1.1' encoding='UTF-8'?>
<project>
  <description>Scratch job for access verification</description>
  <keepDependencies>false</keepDependencies>
  <properties/>
  <scm class="hudson.scm.NullSCM"/>
  <canRoam>true</canRoam>
  <disabled>false</disabled>
  <blockBuildWhenDownstreamBuilding>false</blockBuildWhenDownstreamBuilding>
  <blockBuildWhenUpstreamBuilding>false</blockBuildWhenUpstreamBuilding>
  <triggers/>
  <concurrentBuild>false</concurrentBuild>
  <builders/>
  <publishers/>
  <buildWrappers/>
</project>`

type crumb struct {
	Crumb             string `json:"crumb"`
	CrumbRequestField string `json:"crumbRequestField"`
}

// crumbHeader fetches a CSRF crumb. A missing crumb issuer is not an
// error; requests are then sent without one.
func (v *Verifier) crumbHeader(ctx context.Context, creds *Credentials) http.Header {
	header := http.Header{}
	resp, body, err := v.do(ctx, http.MethodGet, "crumbIssuer/api/json", creds, nil, nil, false)
	if err != nil || resp.StatusCode != http.StatusOK {
		return header
	}

	var c crumb
	if err := json.Unmarshal(body, &c); err != nil || c.Crumb == "" {
		return header
	}
	field := c.CrumbRequestField
	if field == "" {
		field = "Jenkins-Crumb"
	}
	header.Set(field, c.Crumb)
	return header
}

// jobChecks creates a scratch job as admin, exercises the devops job
// permissions against it and deletes it again
func (v *Verifier) jobChecks(ctx context.Context) []Result {
	admin := v.credentials(Admin, false)
	devops := v.credentials(Devops, false)
	jobPath := "job/" + url.PathEscape(v.JobName) + "/"

	adminHeader := v.crumbHeader(ctx, admin)
	createHeader := adminHeader.Clone()
	createHeader.Set("Content-Type", "application/xml")

	create := Result{Name: "admin create job"}
	resp, _, err := v.do(ctx, http.MethodPost, "createItem?name="+url.QueryEscape(v.JobName), admin, createHeader, []byte(scratchJobConfig), true)
	switch {
	case err != nil:
		create.Detail = err.Error()
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusFound:
		create.Status = resp.StatusCode
		create.Detail = fmt.Sprintf("expected status 200 or 302, got %d", resp.StatusCode)
	default:
		create.Status = resp.StatusCode
		create.Passed = true
	}
	results := []Result{create}
	if !create.Passed {
		return results
	}
	defer func() {
		resp, _, err := v.do(context.WithoutCancel(ctx), http.MethodPost, jobPath+"doDelete", admin, adminHeader, nil, true)
		if err != nil {
			v.Logger.Warn("failed to delete scratch job", "job", v.JobName, "err", err)
		} else if resp.StatusCode >= http.StatusBadRequest {
			v.Logger.Warn("failed to delete scratch job", "job", v.JobName, "status", resp.StatusCode)
		}
	}()

	results = append(results, v.runCheck(ctx, Check{
		Name:   "devops job read",
		As:     Devops,
		Path:   jobPath + "api/json",
		Status: []int{http.StatusOK},
	}))

	build := Result{Name: "devops job build"}
	resp, _, err = v.do(ctx, http.MethodPost, jobPath+"build", devops, v.crumbHeader(ctx, devops), nil, true)
	switch {
	case err != nil:
		build.Detail = err.Error()
	case resp.StatusCode != http.StatusCreated:
		build.Status = resp.StatusCode
		build.Detail = fmt.Sprintf("expected status 201, got %d", resp.StatusCode)
	default:
		build.Status = resp.StatusCode
		build.Passed = true
	}
	results = append(results, build)

	results = append(results, v.runCheck(ctx, Check{
		Name:        "devops job workspace",
		As:          Devops,
		Path:        jobPath + "ws/",
		NoRedirects: true,
		NotStatus:   http.StatusForbidden,
	}))

	return results
}
