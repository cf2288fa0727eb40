// Package errors provides the classified error primitives shared by the build core.
//
// A ClassifiedError carries a category (config, vcs, build, queue, ...), a
// severity, a retry strategy and structured context. Errors are built with the
// fluent ErrorBuilder:
//
//	err := errors.NewError(errors.CategoryNotFound, "version not found").
//		WithContext("project", slug).
//		WithContext("version", "latest").
//		Build()
//
// CLIErrorAdapter maps categories to process exit codes for cmd/docsbuild.
package errors
