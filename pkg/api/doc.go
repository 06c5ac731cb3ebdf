/*
Package api exposes baselines, comparisons and reports over HTTP.

Routes:

	POST   /api/v1/baselines                                   store a baseline (YAML or JSON body)
	GET    /api/v1/baselines                                   list stored baselines
	GET    /api/v1/baselines/{name}                            fetch a baseline document
	DELETE /api/v1/baselines/{name}                            delete a baseline
	POST   /api/v1/compare                                     compare two stored baselines
	GET    /api/v1/baselines/{name}/components/{component}/compare?against=
	GET    /api/v1/reports                                     list report summaries
	GET    /api/v1/reports/{id}                                fetch a report
	GET    /health, /ready, /metrics

A comparison answers 200 when it passed and 409 with the full report when it found
incompatible changes or version errors.
*/
package api
