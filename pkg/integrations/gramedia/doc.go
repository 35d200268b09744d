// Package gramedia provides a client for the Gramedia public catalog API.
//
// # Overview
//
// The catalog exposes three list resources and one detail resource:
//
//   - the nested book category tree ([Client.CategoryTree])
//   - products per category slug ([Client.Products])
//   - online and offline store locations ([Client.Stores])
//   - per-product long descriptions ([Client.Description])
//
// List resources are paginated; [FetchAll] reads page 1, learns the page
// count and fetches the remaining pages concurrently, returning records in
// page order.
//
// # Typing
//
// Response structs use the flexible scalar types [Int], [Bool], [String]
// and [Float], which accept the differing primitive encodings the origin
// emits and decode them into one canonical Go type.
//
// # Usage
//
//	client := gramedia.NewClient(gramedia.Options{})
//	books, err := client.Products(ctx, "fiksi")
package gramedia
