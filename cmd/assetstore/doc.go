// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Assetstore is the operator command for the content-addressed asset
// store. It stores and retrieves assets for a project, resolves asset
// references in text files, reconciles with a remote asset server, and
// can itself run as that server (the mirror).
//
// Configuration comes from the file named by --config or the
// ASSETSTORE_CONFIG environment variable.
package main
