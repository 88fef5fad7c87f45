// Package blog is a JSON blog API: principals with roles, posts with
// tags and categories, image uploads and token based authentication.
//
// Authentication:
//   - Auther verifies credentials, issues HS256 tokens through a
//     TokenService and acts as the Gate for protected routes. The gate
//     reloads the principal on every request so role and status changes
//     apply to tokens already issued.
//   - Roles are ordered user < editor < admin. ProtectedRoute rejects a
//     principal below the minimum role with 403 and a missing or invalid
//     token with 401.
//
// User lifecycle:
//   - Users carry a UserStatus, active or inactive. UserStateMachine owns
//     the transition graph and persists the change. Each transition emits
//     an ActivityEvent.
//
// Activity sinks:
//   - ActivitySink receives register, login, role and status events.
//     Sinks run best effort, errors are logged and never fail the request.
//
// Storage:
//   - RepositoryManager groups the bun backed stores and runs writes in a
//     transaction. NewPersistence opens sqlite or postgres and registers
//     the embedded, dialect aware migrations.
package blog
