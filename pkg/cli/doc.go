// Package cli implements the apidelta command line.
//
// Baselines are given as descriptor directories, descriptor files or names of stored
// baselines:
//
//	apidelta compare ./release-1 ./release-2
//	apidelta check release-1 ./work --visibility api --format json
//	apidelta surface ./work --diff release-1
//	apidelta baselines push ./release-2 --name release-2
//	apidelta baselines list
//	apidelta reports list --baseline release-2
//	apidelta serve --port 9090
//	apidelta watch ./work release-2 --schedule "@hourly"
//
// check exits with status 1 when the changes are incompatible or a component version does
// not follow them. Other failures exit with status 2.
package cli
