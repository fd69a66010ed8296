// Package objectstore lists and downloads uploaded documents.
//
// Two providers are available: Cloudinary (Admin API listing over the
// image and raw resource types) and a local directory, which is handy for
// development and tests.
package objectstore
