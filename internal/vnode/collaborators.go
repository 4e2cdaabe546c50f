// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vnode

// NoopNameCache, NoopBufferCache, and NoopCredentialManager are trivial
// implementations of the external collaborator interfaces. They let the CLI
// and tests stand a Subsystem up without pulling in a real name cache,
// buffer cache, or credential store.
type NoopNameCache struct{}

func (NoopNameCache) Init()        {}
func (NoopNameCache) Purge(*Vnode) {}

type NoopBufferCache struct{}

func (NoopBufferCache) Invalidate(*Vnode, int) error { return nil }

type NoopCredentialManager struct{}

func (NoopCredentialManager) Hold(c Credentials) Credentials { return c }
func (NoopCredentialManager) Free(Credentials)               {}
