// Package hfhub provides a client for a Hugging Face dataset repository,
// used as the shared snapshot store.
//
// # Operations
//
//   - [Hub.Exists]: HEAD on the file's resolve URL
//   - [Hub.Download]: GET on the file's resolve URL
//   - [Hub.Upload]: create the repository if needed, upload the file
//     (through Git LFS when the hub asks for it) and commit it to main
//
// # Authentication
//
// Reads are anonymous until the client has logged in. The first upload
// triggers a login: the [TokenSource] is asked for a token, which is then
// verified with whoami. A successful login is kept for the life of the
// Hub, so a process logs in at most once.
//
//	hub, err := hfhub.New(hfhub.Options{
//	    Repo:   "mhmtaufiq/gramedia-datasets",
//	    Tokens: hfhub.StaticToken(os.Getenv("HF_TOKEN")),
//	})
package hfhub
