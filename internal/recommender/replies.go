// Copyright 2026 fanjia1024
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

package recommender

// FallbackReply 没有可用输入时返回，不调用模型与搜索
const FallbackReply = `<div style="background:linear-gradient(135deg,#1B1B1B,#003153); border-radius:20px; padding:24px; border:1px solid rgba(255,255,255,0.1); color:#ffffff;">
  <h2 style="color:#764FF5;">Tell us a little about yourself</h2>
  <p>Share your grade, the activities you already do and the majors you are thinking about, and Graduation Mate will recommend extracurriculars that fit you.</p>
</div>`

// FailureReply 循环失败时返回；具体原因只写日志
const FailureReply = `<div style="background:linear-gradient(135deg,#1B1B1B,#003153); border-radius:20px; padding:24px; border:1px solid rgba(255,255,255,0.1); color:#ffffff;">
  <h2 style="color:#764FF5;">Something went wrong</h2>
  <p>We could not put your recommendations together right now. Please try again in a moment.</p>
</div>`
