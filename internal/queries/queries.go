// Package queries holds the query documents the dashboard runs against the
// code-push management API.
package queries

import "github.com/sorenmh/pushdash/internal/gql"

// Apps lists every app visible to the current account
var Apps = gql.MustParse(`
query Apps {
  dataApps @rest(type: "Apps", path: "apps", method: "GET") {
    apps {
      name
      collaborators
      deployments
    }
  }
}`)

// Deployments lists the deployments of an app. Each deployment exports its
// name so its metrics can be fetched in the same query.
var Deployments = gql.MustParse(`
query Deployments($appName: String!) {
  dataDeployments(appName: $appName)
    @rest(type: "Deployments", method: "GET", path: "apps/{args.appName}/deployments") {
    deployments {
      id
      key
      name @export(as: "name")
      package {
        description
        isDisabled
        isMandatory
        rollout
        appVersion
        packageHash
        blobUrl
        size
        manifestBlobUrl
        releaseMethod
        uploadTime
        label
        releasedBy
        diffPackageMap
      }
      versions(appName: $appName)
        @rest(
          type: "Metrics"
          method: "GET"
          path: "apps/{args.appName}/deployments/{exportVariables.name}/metrics"
        ) {
        metrics
      }
    }
  }
}`)

// DeploymentMetrics fetches the per-version counters of one deployment
var DeploymentMetrics = gql.MustParse(`
query DeploymentMetrics($appName: String!, $deploymentName: String!) {
  dataDeploymentMetrics(appName: $appName, deploymentName: $deploymentName)
    @rest(
      type: "Metrics"
      method: "GET"
      path: "apps/{args.appName}/deployments/{args.deploymentName}/metrics"
    ) {
    versions: metrics
  }
}`)

// DeploymentHistory lists the past releases of one deployment
var DeploymentHistory = gql.MustParse(`
query DeploymentHistory($appName: String!, $deploymentName: String!) {
  dataDeploymentHistory(appName: $appName, deploymentName: $deploymentName)
    @rest(
      type: "DeploymentHistory"
      method: "GET"
      path: "apps/{args.appName}/deployments/{args.deploymentName}/history"
    ) {
    history {
      description
      isDisabled
      isMandatory
      rollout
      appVersion
      packageHash
      blobUrl
      size
      manifestBlobUrl
      releaseMethod
      uploadTime
      label
      releasedBy
      diffPackageMap
    }
  }
}`)

// Root field names of the documents above
const (
	FieldApps              = "dataApps"
	FieldDeployments       = "dataDeployments"
	FieldDeploymentMetrics = "dataDeploymentMetrics"
	FieldDeploymentHistory = "dataDeploymentHistory"
)

// TypePatch names the nested objects of each response type
func TypePatch() map[string]string {
	return map[string]string{
		"Apps.apps":                 "App",
		"Deployments.deployments":   "Deployment",
		"Deployment.package":        "Package",
		"DeploymentHistory.history": "Package",
	}
}

// KeyFields names the identifying field of each normalized type
func KeyFields() map[string]string {
	return map[string]string{
		"App":        "name",
		"Deployment": "id",
	}
}
