/*
Package checker runs compatibility checks end to end.

A Checker resolves baseline documents from a storage.Store, builds them into models with a
descriptor.Loader, compares them with a comparator.Comparator and wraps the result in a
report.Report. Reports are persisted to the store and cached by the fingerprints of both
inputs and the comparison options, so asking the same question twice returns the first
answer.

	chk, err := checker.New(nil,
		checker.WithStore(store),
		checker.WithCache(cache.NewMemoryCache(cache.DefaultConfig())),
	)
	r, err := chk.CompareByName(ctx, "release-1", "release-2", report.Options{
		Visibility: model.VisibilityAPI,
	})
	if !r.Passed() {
		// incompatible
	}
*/
package checker
